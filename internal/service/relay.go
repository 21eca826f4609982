package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"pinworld/internal/apperror"
	"pinworld/internal/model"
	"pinworld/internal/storage"
)

// DefaultCommitMessage is used when the caller sends no message.
const DefaultCommitMessage = "upload via PinWorld"

// RelayService defines the use case behind the upload relay.
type RelayService interface {
	// Forward validates req and writes it to the content host with the
	// server-side credential. Host rejections come back as a Response with
	// their own status; only local failures are errors.
	Forward(ctx context.Context, req model.UploadRequest) (storage.Response, error)
}

// relayService is a concrete implementation of RelayService.
type relayService struct {
	host           storage.ContentHost
	defaultMessage string
	log            *zap.Logger
	upstream       *prometheus.CounterVec
	tracer         trace.Tracer
}

// NewRelayService constructs a RelayService and registers its upstream
// counter on reg.
func NewRelayService(host storage.ContentHost, defaultMessage string, log *zap.Logger, reg prometheus.Registerer) (RelayService, error) {
	if defaultMessage == "" {
		defaultMessage = DefaultCommitMessage
	}
	upstream := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_requests_total",
			Help: "Uploads forwarded to the content host, by backend and upstream status.",
		},
		[]string{"backend", "status"},
	)
	if err := reg.Register(upstream); err != nil {
		return nil, err
	}
	return &relayService{
		host:           host,
		defaultMessage: defaultMessage,
		log:            log.Named("relay"),
		upstream:       upstream,
		tracer:         otel.Tracer("pinworld/relay"),
	}, nil
}

func (s *relayService) Forward(ctx context.Context, req model.UploadRequest) (storage.Response, error) {
	if err := req.Normalize(); err != nil {
		return storage.Response{}, err
	}

	if !s.host.Configured() {
		s.log.Error("relay_config_error",
			zap.String("backend", s.host.Name()),
			zap.String("error_message", "content host credential is not configured"),
		)
		return storage.Response{}, apperror.Configuration("Server configuration error")
	}

	msg := req.Message
	if msg == "" {
		msg = s.defaultMessage
	}

	ctx, span := s.tracer.Start(ctx, "relay.forward", trace.WithAttributes(
		attribute.String("relay.backend", s.host.Name()),
		attribute.String("relay.path", req.Path),
		attribute.Int("relay.content_length", len(req.Content)),
	))
	defer span.End()

	resp, err := s.host.Put(ctx, req.Path, req.Content, storage.PutOptions{Message: msg})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream unreachable")
		s.upstream.WithLabelValues(s.host.Name(), "error").Inc()
		return storage.Response{}, fmt.Errorf("forward %s: %w", req.Path, err)
	}
	span.SetAttributes(attribute.Int("relay.upstream_status", resp.StatusCode))
	s.upstream.WithLabelValues(s.host.Name(), strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 300 {
		s.log.Warn("relay_upstream_rejected",
			zap.String("backend", s.host.Name()),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp, nil
}
