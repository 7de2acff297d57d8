package cluster

import (
	"encoding/json"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locshare-relay/domain"
	"locshare-relay/hub"
)

type mockConn struct {
	sent [][]byte
	mu   sync.Mutex
}

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Close() error { return nil }

func (m *mockConn) getSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func fixedIDs(ids ...string) hub.Option {
	var mu sync.Mutex
	i := 0
	return hub.WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i]
		i++
		return id
	})
}

func newLocal(t *testing.T, ids ...string) (*hub.Hub, map[string]*mockConn) {
	t.Helper()
	h := hub.New(fixedIDs(ids...))
	conns := make(map[string]*mockConn)
	for _, id := range ids {
		c := &mockConn{}
		require.Equal(t, id, h.Register(c))
		conns[id] = c
	}
	return h, conns
}

func TestBridge_ApplyFromOtherInstance(t *testing.T) {
	envelope := domain.Envelope{Kind: domain.KindLocationUpdate, Payload: json.RawMessage(`{"latitude":10,"longitude":20}`)}

	tests := []struct {
		name     string
		dispatch domain.Dispatch
		want     map[string]int
	}{
		{
			name:     "remote broadcast reaches every local peer",
			dispatch: domain.Dispatch{Mode: domain.ModeBroadcast, Source: "remote", Envelope: envelope},
			want:     map[string]int{"B": 1, "C": 1},
		},
		{
			name:     "directed reaches only the local target",
			dispatch: domain.Dispatch{Mode: domain.ModeDirected, Source: "remote", Target: "C", Envelope: envelope},
			want:     map[string]int{"B": 0, "C": 1},
		},
		{
			name:     "directed to a peer not held here is dropped",
			dispatch: domain.Dispatch{Mode: domain.ModeDirected, Source: "remote", Target: "Z", Envelope: envelope},
			want:     map[string]int{"B": 0, "C": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, conns := newLocal(t, "B", "C")
			receiver := New(nil, "test", local)
			sender := New(nil, "test", nil)

			data, err := sender.encode(tt.dispatch)
			require.NoError(t, err)
			receiver.apply(data)

			for id, n := range tt.want {
				sent := conns[id].getSent()
				require.Len(t, sent, n, "peer %s", id)
				if n > 0 {
					assert.JSONEq(t, `{"kind":"locationUpdate","payload":{"latitude":10,"longitude":20}}`, string(sent[0]))
				}
			}
		})
	}
}

func TestBridge_EncodeApplyRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		dispatch domain.Dispatch
		wantTo   []string
	}{
		{
			name: "broadcast keeps source exclusion",
			dispatch: domain.Dispatch{
				Mode:     domain.ModeBroadcast,
				Source:   "A",
				Envelope: domain.Envelope{Kind: domain.KindScreenShareRequest, Payload: json.RawMessage(`"A"`)},
			},
			wantTo: []string{"B", "C"},
		},
		{
			name: "directed keeps target",
			dispatch: domain.Dispatch{
				Mode:     domain.ModeDirected,
				Source:   "B",
				Target:   "A",
				Envelope: domain.Envelope{Kind: domain.KindScreenShareAccepted, Payload: json.RawMessage(`"B"`)},
			},
			wantTo: []string{"A"},
		},
		{
			name: "envelope without payload",
			dispatch: domain.Dispatch{
				Mode:     domain.ModeDirected,
				Source:   "C",
				Target:   "A",
				Envelope: domain.Envelope{Kind: domain.KindScreenShareDeclined},
			},
			wantTo: []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := New(nil, "test", nil)
			data, err := sender.encode(tt.dispatch)
			require.NoError(t, err)

			var msg message
			require.NoError(t, json.Unmarshal(data, &msg))
			assert.Equal(t, sender.Instance(), msg.Origin)
			assert.Equal(t, tt.dispatch.Mode, msg.Dispatch.Mode)
			assert.Equal(t, tt.dispatch.Source, msg.Dispatch.Source)
			assert.Equal(t, tt.dispatch.Target, msg.Dispatch.Target)
			assert.Equal(t, tt.dispatch.Envelope.Kind, msg.Dispatch.Envelope.Kind)

			local, conns := newLocal(t, "A", "B", "C")
			New(nil, "test", local).apply(data)

			want, err := json.Marshal(tt.dispatch.Envelope)
			require.NoError(t, err)
			for id, c := range conns {
				sent := c.getSent()
				if slices.Contains(tt.wantTo, id) {
					require.Len(t, sent, 1, "peer %s", id)
					assert.JSONEq(t, string(want), string(sent[0]))
					continue
				}
				assert.Empty(t, sent, "peer %s", id)
			}
		})
	}
}

func TestBridge_IgnoresOwnMessages(t *testing.T) {
	local, conns := newLocal(t, "B")
	b := New(nil, "test", local)

	data, err := b.encode(domain.Dispatch{
		Mode:     domain.ModeBroadcast,
		Source:   "A",
		Envelope: domain.Envelope{Kind: domain.KindScreenShareRequest, Payload: json.RawMessage(`"A"`)},
	})
	require.NoError(t, err)
	b.apply(data)

	assert.Empty(t, conns["B"].getSent())
}

func TestBridge_IgnoresGarbage(t *testing.T) {
	local, conns := newLocal(t, "B")
	b := New(nil, "test", local)

	assert.NotPanics(t, func() { b.apply([]byte("{not json")) })
	assert.Empty(t, conns["B"].getSent())
}

func TestNew_InstanceIDsDiffer(t *testing.T) {
	assert.NotEqual(t, New(nil, "c", nil).Instance(), New(nil, "c", nil).Instance())
}
