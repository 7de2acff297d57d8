package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locshare-relay/domain"
)

func TestBuildURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:3000":      "ws://localhost:3000/ws",
		"https://relay.example.com":  "wss://relay.example.com/ws",
		"https://relay.example.com/": "wss://relay.example.com/ws",
		"ws://10.0.0.2:3000/ws":      "ws://10.0.0.2:3000/ws",
		"localhost:3000":             "ws://localhost:3000/ws",
	}
	for in, want := range tests {
		assert.Equal(t, want, BuildURL(in), in)
	}
}

// echoRelay announces an id, then sends every received frame back until it
// sees a "hangUp" frame.
func echoRelay(t *testing.T, id string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, _ := json.Marshal(domain.Envelope{Kind: domain.KindConnected, Payload: json.RawMessage(`"` + id + `"`)})
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env domain.Envelope
			if json.Unmarshal(data, &env) == nil && env.Kind == "hangUp" {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDial_LearnsID(t *testing.T) {
	srv := echoRelay(t, "peer-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, srv.URL)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "peer-1", c.ID())
}

func TestClient_EmitAndOn(t *testing.T) {
	srv := echoRelay(t, "peer-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, srv.URL)
	require.NoError(t, err)
	defer c.Close()

	got := make(chan json.RawMessage, 4)
	c.On(domain.KindTextAndLocationUpdate, func(p json.RawMessage) { got <- p })
	c.On(domain.KindScreenData, func(p json.RawMessage) { got <- p })

	require.NoError(t, c.SendTextAndLocation("hola", domain.Location{Latitude: 10, Longitude: 20}))
	select {
	case p := <-got:
		assert.JSONEq(t, `{"text":"hola","latitude":10,"longitude":20}`, string(p))
	case <-ctx.Done():
		t.Fatal("no echo for textAndLocationUpdate")
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.SendScreenData(at, domain.Location{Latitude: 1, Longitude: 2}))
	select {
	case p := <-got:
		assert.JSONEq(t, `{"timestamp":"2024-05-01T12:00:00Z","location":{"latitude":1,"longitude":2}}`, string(p))
	case <-ctx.Done():
		t.Fatal("no echo for screenData")
	}
}

func TestClient_DoneAfterServerCloses(t *testing.T) {
	srv := echoRelay(t, "peer-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, srv.URL)
	require.NoError(t, err)

	require.NoError(t, c.Emit("hangUp", nil))

	select {
	case <-c.Done():
	case <-ctx.Done():
		t.Fatal("client did not notice the closed connection")
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "http://127.0.0.1:1")
	assert.Error(t, err)
}
