package outbox

// Event is the domain event envelope written to the outbox table inside the
// reservation transaction. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAppointmentScheduled = "agenda.appointment.scheduled.v1"
	EventAppointmentCancelled = "agenda.appointment.cancelled.v1"
)
