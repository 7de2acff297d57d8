package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"locshare-relay/domain"
)

// Handler is the event relay: it decodes inbound frames, routes them through the
// routing table and hands the results to the registry. Nothing is ever sent back
// to the sender on failure.
type Handler struct {
	registry domain.Registry
	routes   map[domain.Kind]Route
	fanout   domain.Fanout
}

type Option func(*Handler)

// WithFanout also publishes dispatches to other relay instances.
func WithFanout(f domain.Fanout) Option {
	return func(h *Handler) { h.fanout = f }
}

// WithRoute adds or replaces the route for kind.
func WithRoute(kind domain.Kind, r Route) Option {
	return func(h *Handler) { h.routes[kind] = r }
}

func NewHandler(r domain.Registry, opts ...Option) *Handler {
	h := &Handler{
		registry: r,
		routes:   DefaultRoutes(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Handle(sourceID string, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("invalid message", "clientId", sourceID, "error", err)
		return
	}

	if env.Kind == domain.KindPing {
		h.pong(sourceID, env.Payload)
		return
	}

	route, ok := h.routes[env.Kind]
	if !ok {
		slog.Debug("unknown kind dropped", "clientId", sourceID, "kind", env.Kind)
		return
	}

	d, err := route(sourceID, env.Payload)
	if err != nil {
		slog.Warn("event dropped", "clientId", sourceID, "kind", env.Kind, "error", err)
		return
	}

	if env.Kind == domain.KindTextAndLocationUpdate {
		slog.Info("text and location received", "clientId", sourceID, "bytes", len(env.Payload))
	}

	h.Dispatch(d)
}

// Dispatch delivers d to local connections and, when a fanout is configured,
// to the other instances that may hold the recipients.
func (h *Handler) Dispatch(d domain.Dispatch) {
	delivered := Deliver(d, h.registry)

	if h.fanout == nil || !needsFanout(d, delivered) {
		return
	}
	if err := h.fanout.Publish(context.Background(), d); err != nil {
		slog.Warn("fanout publish failed", "clientId", d.Source, "kind", d.Envelope.Kind, "error", err)
	}
}

// Deliver resolves d against the registry and queues it on every recipient.
// It returns how many recipients were resolved.
func Deliver(d domain.Dispatch, r domain.Registry) int {
	deliveries := Resolve(d, r)
	if len(deliveries) == 0 {
		return 0
	}

	data, err := json.Marshal(d.Envelope)
	if err != nil {
		slog.Warn("marshal error", "clientId", d.Source, "kind", d.Envelope.Kind, "error", err)
		return 0
	}
	for _, dl := range deliveries {
		if err := r.Deliver(dl.Target, data); err != nil {
			if errors.Is(err, domain.ErrNotLive) {
				slog.Debug("recipient gone", "clientId", dl.Target, "kind", d.Envelope.Kind)
				continue
			}
			slog.Warn("delivery failed", "clientId", dl.Target, "kind", d.Envelope.Kind, "error", err)
		}
	}
	return len(deliveries)
}

func needsFanout(d domain.Dispatch, delivered int) bool {
	switch d.Mode {
	case domain.ModeBroadcast:
		return true
	case domain.ModeDirected:
		return delivered == 0 && d.Target != d.Source
	default:
		return false
	}
}

func (h *Handler) pong(sourceID string, payload json.RawMessage) {
	resp, err := json.Marshal(domain.Envelope{Kind: domain.KindPong, Payload: payload})
	if err != nil {
		return
	}
	if err := h.registry.Deliver(sourceID, resp); err != nil {
		slog.Debug("pong not delivered", "clientId", sourceID, "error", err)
	}
}
