package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventBrokerFanOut(t *testing.T) {
	b := NewEventBroker()
	a, cancelA := b.Subscribe("doc", 4)
	c, cancelC := b.Subscribe("doc", 4)
	other, cancelOther := b.Subscribe("other", 4)
	defer cancelOther()

	b.Publish(Event{DocumentID: "doc", Type: EventStatus})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventStatus, ev.Type)
			assert.False(t, ev.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	assert.Empty(t, other)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers("doc"))
	cancelC()
	assert.Equal(t, 0, b.Subscribers("doc"))
}

func TestEventBrokerDropsWhenFull(t *testing.T) {
	b := NewEventBroker()
	ch, cancel := b.Subscribe("doc", 1)
	defer cancel()

	b.Publish(Event{DocumentID: "doc", Type: EventStatus})
	b.Publish(Event{DocumentID: "doc", Type: EventCompleted})

	ev := <-ch
	assert.Equal(t, EventStatus, ev.Type)
	assert.Empty(t, ch)
}

func TestEventBrokerClose(t *testing.T) {
	b := NewEventBroker()
	ch, cancel := b.Subscribe("doc", 1)
	b.Close()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	late, _ := b.Subscribe("doc", 1)
	_, open = <-late
	require.False(t, open)
	b.Publish(Event{DocumentID: "doc"})
}

func TestEventTypeTerminal(t *testing.T) {
	assert.True(t, EventCompleted.Terminal())
	assert.True(t, EventFailed.Terminal())
	assert.True(t, EventStale.Terminal())
	assert.False(t, EventStatus.Terminal())
	assert.False(t, EventLLMRequest.Terminal())
}
