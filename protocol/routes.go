package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"locshare-relay/domain"
)

var ErrMalformedPayload = errors.New("malformed payload")

// Route turns one inbound event into a routing decision. Routes are pure: they
// never touch the registry.
type Route func(source string, payload json.RawMessage) (domain.Dispatch, error)

// DefaultRoutes is the static routing table for the share protocol.
func DefaultRoutes() map[domain.Kind]Route {
	return map[domain.Kind]Route{
		domain.KindRequestScreenShare:    requestScreenShare,
		domain.KindAcceptScreenShare:     acceptScreenShare,
		domain.KindDeclineScreenShare:    declineScreenShare,
		domain.KindScreenData:            relay(domain.KindScreenUpdate, validateScreenData),
		domain.KindLocationUpdate:        relay(domain.KindLocationUpdate, validateLocationUpdate),
		domain.KindTextAndLocationUpdate: relay(domain.KindTextAndLocationUpdate, validateTextAndLocation),
	}
}

func requestScreenShare(source string, _ json.RawMessage) (domain.Dispatch, error) {
	return broadcast(source, domain.KindScreenShareRequest, quote(source)), nil
}

func acceptScreenShare(source string, payload json.RawMessage) (domain.Dispatch, error) {
	target, err := decodeTarget(payload)
	if err != nil {
		return domain.Dispatch{}, err
	}
	return directed(source, target, domain.KindScreenShareAccepted, quote(source)), nil
}

func declineScreenShare(source string, payload json.RawMessage) (domain.Dispatch, error) {
	target, err := decodeTarget(payload)
	if err != nil {
		return domain.Dispatch{}, err
	}
	return directed(source, target, domain.KindScreenShareDeclined, nil), nil
}

// relay forwards a validated payload unchanged to everyone but the sender.
func relay(outbound domain.Kind, validate func(json.RawMessage) error) Route {
	return func(source string, payload json.RawMessage) (domain.Dispatch, error) {
		if err := validate(payload); err != nil {
			return domain.Dispatch{}, err
		}
		return broadcast(source, outbound, payload), nil
	}
}

func broadcast(source string, kind domain.Kind, payload json.RawMessage) domain.Dispatch {
	return domain.Dispatch{
		Mode:     domain.ModeBroadcast,
		Source:   source,
		Envelope: domain.Envelope{Kind: kind, Payload: payload},
	}
}

func directed(source, target string, kind domain.Kind, payload json.RawMessage) domain.Dispatch {
	return domain.Dispatch{
		Mode:     domain.ModeDirected,
		Source:   source,
		Target:   target,
		Envelope: domain.Envelope{Kind: kind, Payload: payload},
	}
}

// Resolve expands a dispatch into deliveries against the registry as it is now.
// A directed event never goes back to its sender.
func Resolve(d domain.Dispatch, dir domain.Directory) []domain.Delivery {
	switch d.Mode {
	case domain.ModeBroadcast:
		targets := dir.AllExcept(d.Source)
		deliveries := make([]domain.Delivery, 0, len(targets))
		for _, id := range targets {
			deliveries = append(deliveries, domain.Delivery{Target: id, Envelope: d.Envelope})
		}
		return deliveries
	case domain.ModeDirected:
		if d.Target == d.Source || !dir.IsLive(d.Target) {
			return nil
		}
		return []domain.Delivery{{Target: d.Target, Envelope: d.Envelope}}
	default:
		return nil
	}
}

func decodeTarget(payload json.RawMessage) (string, error) {
	var target string
	if err := json.Unmarshal(payload, &target); err != nil {
		return "", fmt.Errorf("%w: target id: %v", ErrMalformedPayload, err)
	}
	if target == "" {
		return "", fmt.Errorf("%w: empty target id", ErrMalformedPayload)
	}
	return target, nil
}

func quote(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
