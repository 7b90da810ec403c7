package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FireCallsSubscribers(t *testing.T) {
	h := NewHub(nil, "")
	var got []Event
	h.Subscribe(TopicsRemoved, func(_ context.Context, ev Event) { got = append(got, ev) })
	h.Subscribe(TopicsRemoved, func(context.Context, Event) { panic("boom") })

	h.Fire(context.Background(), TopicsRemoved, map[string]interface{}{"topics": []int{1, 2}})
	h.Fire(context.Background(), MessageRemoved, nil)

	if assert.Len(t, got, 1) {
		assert.Equal(t, TopicsRemoved, got[0].Name)
		assert.Equal(t, []int{1, 2}, got[0].Payload["topics"])
		assert.False(t, got[0].At.IsZero())
	}
}

func TestHub_NilIsNoop(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Fire(context.Background(), BoardsChanged, nil) })
}

func TestHub_DispatchSkipsOwnEvents(t *testing.T) {
	a, b := NewHub(nil, ""), NewHub(nil, "")
	var got []string
	a.Subscribe(BoardsChanged, func(_ context.Context, ev Event) { got = append(got, ev.Origin) })

	data, err := json.Marshal(Event{Name: BoardsChanged, Origin: b.origin})
	require.NoError(t, err)
	a.dispatch(context.Background(), data)

	own, err := json.Marshal(Event{Name: BoardsChanged, Origin: a.origin})
	require.NoError(t, err)
	a.dispatch(context.Background(), own)
	a.dispatch(context.Background(), []byte("{not json"))

	assert.Equal(t, []string{b.origin}, got)
}

func TestHub_ListenWithoutRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewHub(nil, "").Listen(ctx))
}
