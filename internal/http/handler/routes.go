package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pinworld/docs"
)

// RouteOptions carries what RegisterRoutes needs besides the relay handler.
type RouteOptions struct {
	Gatherer   prometheus.Gatherer
	RateLimit  int
	RateWindow time.Duration
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Operational
// routes come first; every other path is the relay.
func RegisterRoutes(app *fiber.App, relay *RelayHandler, opt RouteOptions) {
	// Liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	if opt.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opt.Gatherer, promhttp.HandlerOpts{})))
	}

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	app.All("/*",
		relay.Origin,
		relay.Method,
		relay.RateLimit(opt.RateLimit, opt.RateWindow),
		relay.Upload,
	)
}
