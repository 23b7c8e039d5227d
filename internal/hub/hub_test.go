// internal/hub/hub_test.go
package hub

import (
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/magyk-ai/mvow/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(buffer int) *Hub {
	logger, _ := test.NewNullLogger()
	return New(logger, buffer)
}

func readFrame(t *testing.T, c *Conn) models.Envelope {
	t.Helper()
	select {
	case frame := <-c.OutChan:
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatalf("no frame queued for %s", c.ID)
		return models.Envelope{}
	}
}

func TestEmitTargetsOneConnection(t *testing.T) {
	h := newTestHub(0)
	a := h.Register("a", nil)
	b := h.Register("b", nil)

	h.Emit("a", models.EventLobbyError, models.LobbyErrorPayload{Code: models.ErrCodeFull, Message: "full"})

	env := readFrame(t, a)
	assert.Equal(t, models.EventLobbyError, env.Event)
	var payload models.LobbyErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, models.ErrCodeFull, payload.Code)
	assert.Empty(t, b.OutChan)

	// Unknown connections are ignored.
	h.Emit("ghost", models.EventLobbyError, nil)
}

func TestBroadcastPreservesOrder(t *testing.T) {
	h := newTestHub(0)
	a := h.Register("a", nil)
	b := h.Register("b", nil)
	outsider := h.Register("c", nil)
	h.Join("a", "ROOM22")
	h.Join("b", "ROOM22")

	for i := 3; i >= 1; i-- {
		h.Broadcast("ROOM22", models.EventGameCountdown, models.CountdownPayload{LobbyCode: "ROOM22", SecondsRemaining: i})
	}

	for _, c := range []*Conn{a, b} {
		for want := 3; want >= 1; want-- {
			env := readFrame(t, c)
			var p models.CountdownPayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			assert.Equal(t, want, p.SecondsRemaining)
		}
	}
	assert.Empty(t, outsider.OutChan)
}

func TestLeaveAndUnregister(t *testing.T) {
	h := newTestHub(0)
	a := h.Register("a", nil)
	h.Register("b", nil)
	h.Join("a", "ROOM22")
	h.Join("b", "ROOM22")
	assert.Equal(t, 2, h.RoomSize("ROOM22"))

	h.Leave("b", "ROOM22")
	assert.Equal(t, 1, h.RoomSize("ROOM22"))

	h.Unregister("a")
	assert.Zero(t, h.RoomSize("ROOM22"))
	assert.Equal(t, 1, h.Count())

	_, open := <-a.OutChan
	assert.False(t, open)

	// Joining after unregistering is a no-op.
	h.Join("a", "ROOM22")
	assert.Zero(t, h.RoomSize("ROOM22"))
}

func TestSlowConsumerIsDropped(t *testing.T) {
	h := newTestHub(2)
	var drops int32
	h.Register("slow", func() { atomic.AddInt32(&drops, 1) })
	h.Join("slow", "ROOM22")

	for i := 0; i < 5; i++ {
		h.Broadcast("ROOM22", models.EventLobbyUpdated, models.LobbyPayload{})
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&drops))
}

func TestRegisterReplacesExisting(t *testing.T) {
	h := newTestHub(0)
	old := h.Register("a", nil)
	h.Join("a", "ROOM22")

	fresh := h.Register("a", nil)
	_, open := <-old.OutChan
	assert.False(t, open)
	assert.Zero(t, h.RoomSize("ROOM22"))

	h.Emit("a", models.EventLobbyUpdated, models.LobbyPayload{})
	assert.Len(t, fresh.OutChan, 1)
}
