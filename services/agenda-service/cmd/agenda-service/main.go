package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/r-ledesma/medagenda/libs/auth"
	"github.com/r-ledesma/medagenda/libs/config"
	"github.com/r-ledesma/medagenda/libs/db"
	"github.com/r-ledesma/medagenda/libs/httpx"
	"github.com/r-ledesma/medagenda/libs/kafkax"
	otelx "github.com/r-ledesma/medagenda/libs/otel"
	"github.com/r-ledesma/medagenda/libs/runtime"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/booking"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/handlers"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/outbox"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/rules"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "agenda-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	hours := officeHoursFromEnv()
	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewRepository(pool, outboxRepo, hours.Location)
	svc := booking.NewService(repo, rules.Default(hours, leadTimeFromEnv()), logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	jwksURL := config.String("JWKS_URL", "")
	var jwksClient *auth.JWKSClient
	if jwksURL != "" {
		jwksTTL := config.Int("JWKS_CACHE_SECONDS", 300)
		if jwksTTL <= 0 {
			jwksTTL = 300
		}
		jwksClient = auth.NewJWKSClient(jwksURL, time.Duration(jwksTTL)*time.Second)
	}

	h := handlers.NewAgendaHandler(svc, logger)
	mux.Handle("/api/v1/appointments", requireAuth(routeAppointments(h), jwtSecret, jwksClient))
	mux.Handle("/api/v1/appointments/cancel", requireAuth(http.HandlerFunc(h.Cancel), jwtSecret, jwksClient))

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	if bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	requestTimeout := time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limitPerMinute <= 0 {
		limitPerMinute = 120
	}
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "agenda")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func routeAppointments(h *handlers.AgendaHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.Reserve(w, r)
		case http.MethodGet:
			h.Get(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// officeHoursFromEnv lets deployments shift the clinic calendar without a
// rebuild. The defaults mirror the clinic's published schedule.
func officeHoursFromEnv() model.OfficeHours {
	hours := model.DefaultOfficeHours()
	if v := config.Int("CLINIC_CLOSED_WEEKDAY", int(hours.ClosedWeekday)); v >= 0 && v <= 6 {
		hours.ClosedWeekday = time.Weekday(v)
	}
	if v := config.Int("CLINIC_OPEN_HOUR", hours.OpenHour); v >= 0 && v < 24 {
		hours.OpenHour = v
	}
	if v := config.Int("CLINIC_CLOSE_HOUR", hours.CloseHour); v > hours.OpenHour && v <= 24 {
		hours.CloseHour = v
	}
	if v := config.Int("CLINIC_VISIT_MINUTES", int(hours.VisitLength/time.Minute)); v > 0 {
		hours.VisitLength = time.Duration(v) * time.Minute
	}
	if tz := config.String("CLINIC_TIMEZONE", ""); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			hours.Location = loc
		}
	}
	return hours
}

func leadTimeFromEnv() time.Duration {
	minutes := config.Int("BOOKING_LEAD_MINUTES", 30)
	if minutes < 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

func requireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, herr := auth.ParseHeader(token)
			if herr != nil {
				http.Error(w, "invalid token header", http.StatusUnauthorized)
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, kerr := jwksClient.Get(header.Kid)
				if kerr != nil {
					http.Error(w, "invalid token key", http.StatusUnauthorized)
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
		}
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Del("X-User-Id")
		r.Header.Del("X-Role")
		r.Header.Set("X-User-Id", claims.Sub)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
