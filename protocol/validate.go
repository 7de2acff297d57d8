package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var payloadValidator = validator.New()

// Payload shapes only check that the expected fields are present with the
// right JSON types. Values are never inspected; a valid payload is relayed
// as the sender wrote it. Pointer fields let a zero coordinate pass
// "required" while a missing one fails.
type locationPayload struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

type textAndLocationPayload struct {
	Text      *string  `json:"text" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

type screenDataPayload struct {
	Timestamp *string          `json:"timestamp" validate:"required"`
	Location  *locationPayload `json:"location" validate:"required"`
}

var (
	validateLocationUpdate  = checkPayload[locationPayload]
	validateTextAndLocation = checkPayload[textAndLocationPayload]
	validateScreenData      = checkPayload[screenDataPayload]
)

func checkPayload[T any](payload json.RawMessage) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedPayload)
	}
	var p T
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := payloadValidator.Struct(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
