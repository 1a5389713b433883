// Package gateway is the single path every authenticated backend call
// takes. It attaches the bearer token, spots expired credentials, and
// refreshes and resends at most once.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/wire"
)

const (
	maxAttempts     = 2
	headerRequestID = "X-Request-ID"
	tracerName      = "github.com/dwikikusuma/shoping-storefront/internal/gateway"
)

// TokenSource is the slice of the session store the gateway needs.
type TokenSource interface {
	AccessToken() (string, bool)
	// RefreshAfter returns a usable access token after rejected was
	// refused by the backend.
	RefreshAfter(ctx context.Context, rejected string) (string, error)
}

type Request struct {
	Method string
	Path   string
	// Body is JSON-encoded when non-nil.
	Body any
	// Auth marks calls that make no sense without a session. They fail
	// before touching the network when nobody is logged in.
	Auth bool
	// Op names the call in errors, logs and spans.
	Op string
}

func (r Request) op() string {
	if r.Op != "" {
		return r.Op
	}
	return r.Method + " " + r.Path
}

type Gateway struct {
	baseURL    string
	http       *http.Client
	tokens     TokenSource
	log        *slog.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

type Option func(*Gateway)

func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		if tp != nil {
			g.tracer = tp.Tracer(tracerName)
		}
	}
}

func New(baseURL string, client *http.Client, tokens TokenSource, opts ...Option) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       client,
		tokens:     tokens,
		log:        slog.Default(),
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends req and decodes a 2xx body into out (when out is non-nil).
// An expired-credential answer triggers one refresh and one resend; a
// public request whose refresh is rejected is resent once without a
// bearer instead. Any other failure is classified and returned as is.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	op := req.op()

	token, hasToken := g.tokens.AccessToken()
	if req.Auth && !hasToken {
		return apperr.Unauthenticated(op)
	}

	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return apperr.Validation(op, "encoding request body: %v", err)
		}
		payload = b
	}

	requestID := uuid.NewString()
	ctx, span := g.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.Path),
			attribute.String("storefront.request_id", requestID),
		),
	)
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	for attempt := 1; ; attempt++ {
		span.SetAttributes(attribute.Int("storefront.attempt", attempt))
		g.log.Debug("backend call",
			slog.String("op", op),
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
		)

		status, header, data, err := g.send(ctx, req, payload, token, hasToken, requestID)
		if err != nil {
			return fail(apperr.Wrap(apperr.ErrTransport, op, err))
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		if hasToken && credentialExpired(status, header, data) {
			if attempt >= maxAttempts {
				g.log.Warn("credential rejected after refresh", slog.String("op", op), slog.String("request_id", requestID))
				return fail(apperr.SessionExpired(op, nil))
			}
			g.log.Warn("credential expired, refreshing", slog.String("op", op), slog.String("request_id", requestID))
			token, err = g.tokens.RefreshAfter(ctx, token)
			if err != nil && !req.Auth && errors.Is(err, apperr.ErrUnauthenticated) {
				// The session is gone; a public call still works without it.
				g.log.Info("session ended, resending without credentials", slog.String("op", op), slog.String("request_id", requestID))
				hasToken = false
				continue
			}
			if err != nil {
				return fail(err)
			}
			continue
		}

		if status < 200 || status > 299 {
			return fail(apperr.FromStatus(op, status, wire.ParseErrorBody(data).Summary()))
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fail(apperr.Wrap(apperr.ErrTransport, op, fmt.Errorf("decoding response: %w", err)))
		}
		return nil
	}
}

func (g *Gateway) send(ctx context.Context, req Request, payload []byte, token string, withToken bool, requestID string) (int, http.Header, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.baseURL+req.Path, body)
	if err != nil {
		return 0, nil, nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if withToken {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set(headerRequestID, requestID)
	g.propagator.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, data, nil
}

// credentialExpired recognises the backend's "access token no longer good"
// answer: a 401 with code token_not_valid, or an RFC 6750 invalid_token
// challenge.
func credentialExpired(status int, header http.Header, body []byte) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	if strings.Contains(header.Get("WWW-Authenticate"), "invalid_token") {
		return true
	}
	return wire.ParseErrorBody(body).Code == "token_not_valid"
}
