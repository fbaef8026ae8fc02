package webhook

import (
	"encoding/json"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
)

// Event is a webhook payload that passed verification. Its fields are
// unexported so the only way to obtain a populated Event is Verify.
type Event struct {
	id         string
	eventType  string
	created    int64
	livemode   bool
	apiVersion string
	payload    map[string]any
	raw        []byte
	stripe     *stripe.Event
}

// ID is the provider event identifier, or "" when the body has none.
func (e *Event) ID() string { return e.id }

// Type is the provider event type, e.g. "invoice.paid".
func (e *Event) Type() string { return e.eventType }

// Created is the provider creation time, zero when absent.
func (e *Event) Created() time.Time {
	if e.created == 0 {
		return time.Time{}
	}
	return time.Unix(e.created, 0).UTC()
}

func (e *Event) Livemode() bool     { return e.livemode }
func (e *Event) APIVersion() string { return e.apiVersion }

// Payload returns the decoded JSON body.
func (e *Event) Payload() map[string]any { return e.payload }

// Object returns data.object from the body, or nil when absent.
func (e *Event) Object() map[string]any {
	data, ok := e.payload["data"].(map[string]any)
	if !ok {
		return nil
	}
	obj, _ := data["object"].(map[string]any)
	return obj
}

// Raw returns a copy of the exact bytes that were verified.
func (e *Event) Raw() []byte {
	out := make([]byte, len(e.raw))
	copy(out, e.raw)
	return out
}

// Stripe returns the body decoded as a stripe-go event, or nil when the
// body does not fit stripe-go's event schema.
func (e *Event) Stripe() *stripe.Event { return e.stripe }

// parseEvent accepts any JSON object. The envelope fields are read from the
// generic decode, so a body with unexpected field types still yields an
// Event with those fields left empty.
func parseEvent(payload []byte) (*Event, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, &VerificationError{Reason: ReasonMalformedPayload, Detail: "body is not a JSON object", Err: err}
	}
	if body == nil {
		return nil, newError(ReasonMalformedPayload, "body is not a JSON object")
	}

	raw := make([]byte, len(payload))
	copy(raw, payload)

	evt := &Event{
		id:         stringField(body, "id"),
		eventType:  stringField(body, "type"),
		apiVersion: stringField(body, "api_version"),
		payload:    body,
		raw:        raw,
	}
	if created, ok := body["created"].(float64); ok {
		evt.created = int64(created)
	}
	evt.livemode, _ = body["livemode"].(bool)

	var se stripe.Event
	if err := json.Unmarshal(payload, &se); err == nil {
		evt.stripe = &se
	}
	return evt, nil
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}
