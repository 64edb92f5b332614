package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublish(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var got []Event
	b.Subscribe(PermissionRequired, func(ev Event) {
		got = append(got, ev)
	})

	b.Publish(Event{Type: PermissionRequired, Data: PermissionRequiredData{ID: "p1", Tool: "bash"}})
	b.Publish(Event{Type: StepStarted, Data: StepStartedData{Step: 1}})

	require.Len(t, got, 1)
	data, ok := got[0].Data.(PermissionRequiredData)
	require.True(t, ok)
	assert.Equal(t, "p1", data.ID)
	assert.Equal(t, "bash", data.Tool)
}

func TestSubscribeAll(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var count int
	b.SubscribeAll(func(Event) { count++ })

	b.Publish(Event{Type: StepStarted})
	b.Publish(Event{Type: LoopFinished})

	assert.Equal(t, 2, count)
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var count int
	cancel := b.Subscribe(StepStarted, func(Event) { count++ })

	b.Publish(Event{Type: StepStarted})
	cancel()
	b.Publish(Event{Type: StepStarted})

	assert.Equal(t, 1, count)
}

func TestMessagesCarriesSerializedEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The gochannel is not persistent, so subscribe before publishing.
	msgs, err := b.Messages(ctx)
	require.NoError(t, err)

	b.Publish(Event{Type: LoopFinished, Data: LoopFinishedData{Reason: "normal", Steps: 3}})

	select {
	case msg := <-msgs:
		msg.Ack()
		var got struct {
			Type Type `json:"type"`
			Data struct {
				Reason string `json:"reason"`
				Steps  int    `json:"steps"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, LoopFinished, got.Type)
		assert.Equal(t, "normal", got.Data.Reason)
		assert.Equal(t, 3, got.Data.Steps)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on the events topic")
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := NewBus()

	var count int
	b.Subscribe(StepStarted, func(Event) { count++ })
	require.NoError(t, b.Close())

	b.Publish(Event{Type: StepStarted})
	assert.Zero(t, count)
}
