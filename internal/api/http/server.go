package httpapi

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weatherservice/internal/logging"
	"github.com/i474232898/weatherservice/internal/metrics"
	"github.com/i474232898/weatherservice/internal/perflog"
	"github.com/i474232898/weatherservice/internal/weather"
)

// Deps are the collaborators of the HTTP layer. Metrics, Gatherer and
// PerfLog are optional.
type Deps struct {
	Service     *weather.Service
	PerfLog     *perflog.Service
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
	AppName     string
	CORSOrigins string
	Timeout     time.Duration
}

// NewApp builds the Fiber app with middleware and every route registered.
func NewApp(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.AppName == "" {
		d.AppName = "weatherservice"
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	logger := logging.Component(d.Logger, "http")

	app := fiber.New(fiber.Config{
		AppName:               d.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           d.Timeout,
		WriteTimeout:          d.Timeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			msg := "internal server error"
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				msg = e.Message
			} else {
				logger.Error("unhandled error", "path", c.Path(), "error", err)
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": msg,
			})
		},
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(accessLog(logger, d.Metrics, d.PerfLog))
	app.Use(recover.New())
	if d.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: d.CORSOrigins,
			AllowMethods: "GET,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Testing that it's working!")
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := d.Service.Ping(c.UserContext()); err != nil {
			logger.Warn("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "unavailable",
				"service": d.AppName,
			})
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": d.AppName,
		})
	})

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterRoutes(app, d.Service, d.PerfLog, logger)
	return app
}

// accessLog writes one log line per request, updates request metrics and
// records the request in the performance log.
func accessLog(logger *slog.Logger, m *metrics.Collector, perf *perflog.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}

		if c.Path() == "/metrics" {
			return err
		}
		// Ctx strings alias request buffers that fasthttp reuses.
		path := utils.CopyString(c.Path())
		method := utils.CopyString(c.Method())
		requestID := utils.CopyString(c.GetRespHeader(fiber.HeaderXRequestID))

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(c.UserContext(), level, "request",
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestID,
		)

		if m != nil {
			endpoint := c.Route().Path
			if status == fiber.StatusNotFound && err != nil {
				endpoint = "unmatched"
			}
			m.RecordAPIRequest(endpoint, method, strconv.Itoa(status), elapsed)
		}
		if perf != nil {
			perf.Log(perflog.Entry{
				Timestamp:      start.UTC(),
				Method:         method,
				Path:           path,
				StatusCode:     status,
				ResponseTimeMs: elapsed.Milliseconds(),
				RequestID:      requestID,
			})
		}
		return err
	}
}
