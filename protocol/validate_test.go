package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayloads(t *testing.T) {
	tests := []struct {
		name     string
		validate func(json.RawMessage) error
		payload  string
		wantErr  bool
	}{
		{name: "location ok", validate: validateLocationUpdate, payload: `{"latitude":10,"longitude":20}`},
		{name: "location at origin", validate: validateLocationUpdate, payload: `{"latitude":0,"longitude":0}`},
		{name: "location bounds", validate: validateLocationUpdate, payload: `{"latitude":-90,"longitude":180}`},
		{name: "location missing", validate: validateLocationUpdate, payload: ``, wantErr: true},
		{name: "location null", validate: validateLocationUpdate, payload: `null`, wantErr: true},
		{name: "location string coords", validate: validateLocationUpdate, payload: `{"latitude":"10","longitude":"20"}`, wantErr: true},
		{name: "location values are not range checked", validate: validateLocationUpdate, payload: `{"latitude":91,"longitude":-180.5}`},
		{name: "location missing longitude", validate: validateLocationUpdate, payload: `{"latitude":1}`, wantErr: true},

		{name: "text ok", validate: validateTextAndLocation, payload: `{"text":"","latitude":1,"longitude":2}`},
		{name: "text not a string", validate: validateTextAndLocation, payload: `{"text":5,"latitude":1,"longitude":2}`, wantErr: true},
		{name: "text without coords", validate: validateTextAndLocation, payload: `{"text":"hi"}`, wantErr: true},

		{name: "screen ok", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00Z","location":{"latitude":1,"longitude":2}}`},
		{name: "screen js iso string", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00.123Z","location":{"latitude":1,"longitude":2}}`},
		{name: "screen local time without offset", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00","location":{"latitude":1,"longitude":2}}`},
		{name: "screen numeric offset", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00+0200","location":{"latitude":1,"longitude":2}}`},
		{name: "screen timestamp not a string", validate: validateScreenData, payload: `{"timestamp":1714564800,"location":{"latitude":1,"longitude":2}}`, wantErr: true},
		{name: "screen empty location", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00Z","location":{}}`, wantErr: true},
		{name: "screen missing location", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00Z"}`, wantErr: true},
		{name: "screen missing timestamp", validate: validateScreenData, payload: `{"location":{"latitude":1,"longitude":2}}`, wantErr: true},
		{name: "screen flat coords", validate: validateScreenData, payload: `{"timestamp":"2024-05-01T12:00:00Z","latitude":1,"longitude":2}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validate(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			assert.NoError(t, err)
		})
	}
}
