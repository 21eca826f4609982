package handler

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"pinworld/internal/apperror"
	"pinworld/internal/http/middleware"
	"pinworld/internal/model"
	"pinworld/internal/service"
)

const (
	corsAllowMethods = "PUT, OPTIONS"
	corsAllowHeaders = "Content-Type"
	corsMaxAge       = 86400
)

// RelayHandler guards the content host credential. Each request walks the
// chain origin, method, rate limit, then payload; the first rejection ends it.
type RelayHandler struct {
	svc     service.RelayService
	origins map[string]struct{}
	log     *zap.Logger
}

// NewRelayHandler builds the handler. Origins are matched exactly.
func NewRelayHandler(svc service.RelayService, allowedOrigins []string, log *zap.Logger) *RelayHandler {
	return &RelayHandler{svc: svc, origins: originSet(allowedOrigins), log: log.Named("relay")}
}

func originSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, o := range list {
		set[o] = struct{}{}
	}
	return set
}

func originAllowed(set map[string]struct{}, origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := set[origin]
	return ok
}

func setCORS(c *fiber.Ctx, origin string) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	c.Vary(fiber.HeaderOrigin)
}

// Origin answers preflights and rejects foreign origins. Allowed requests
// leave with CORS headers already set, so every later response carries them.
func (h *RelayHandler) Origin(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	if !originAllowed(h.origins, origin) {
		return h.fail(c, apperror.Forbidden(), zap.String("origin", origin))
	}

	setCORS(c, origin)
	if c.Method() == fiber.MethodOptions {
		c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(corsMaxAge))
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Next()
}

// Method admits PUT only.
func (h *RelayHandler) Method(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPut {
		c.Set(fiber.HeaderAllow, corsAllowMethods)
		return h.fail(c, apperror.MethodNotAllowed())
	}
	return c.Next()
}

// RateLimit limits uploads per client IP. Rejections keep the CORS headers
// set by Origin so the page can read them.
func (h *RelayHandler) RateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			h.log.Info("relay_rate_limited",
				zap.String("request_id", middleware.RequestIDFrom(c)),
				zap.String("ip", c.IP()),
			)
			return writeError(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
		},
	})
}

// Upload godoc
// @Summary      Upload a file to the content host
// @Description  Forwards a base64 file to the configured repository with the relay's credential. The content host response is passed through verbatim.
// @Tags         relay
// @Accept       json
// @Produce      json
// @Param        Origin   header  string               true  "Allow-listed page origin"
// @Param        request  body    model.UploadRequest  true  "File to store"
// @Success      201  {object}  model.UploadResult
// @Failure      400  {object}  errorPayload
// @Failure      403  {object}  errorPayload
// @Failure      405  {object}  errorPayload
// @Failure      429  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       / [put]
func (h *RelayHandler) Upload(c *fiber.Ctx) error {
	var req model.UploadRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return h.fail(c, apperror.Validation("body", "Missing path or content"))
	}

	resp, err := h.svc.Forward(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, resp.ContentType)
	return c.Status(resp.StatusCode).Send(resp.Body)
}

func (h *RelayHandler) fail(c *fiber.Ctx, err error, extra ...zap.Field) error {
	status, code := statusFor(err)
	fields := append([]zap.Field{
		zap.String("request_id", middleware.RequestIDFrom(c)),
		zap.String("method", c.Method()),
		zap.String("code", code),
		zap.Error(err),
	}, extra...)
	if apperror.IsClientFault(err) {
		h.log.Info("relay_request_rejected", fields...)
	} else {
		h.log.Error("relay_request_failed", fields...)
	}
	return writeError(c, status, code, err.Error())
}
