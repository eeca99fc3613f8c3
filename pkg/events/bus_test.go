package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToTypeAndWildcard(t *testing.T) {
	bus := &EventBus{handlers: make(map[string][]EventHandler)}

	var mu sync.Mutex
	var got []string
	record := func(tag string) EventHandler {
		return func(e Event) error {
			mu.Lock()
			got = append(got, tag+":"+e.Type)
			mu.Unlock()
			return nil
		}
	}
	bus.Subscribe(TurnCompleted, record("typed"))
	bus.Subscribe("*", record("wild"))

	bus.Publish(Event{Type: TurnCompleted, Source: "test"})
	bus.Publish(Event{Type: TurnAborted, Source: "test"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{
		"typed:" + TurnCompleted,
		"wild:" + TurnCompleted,
		"wild:" + TurnAborted,
	}, got)
}

func TestPublishFillsIDAndTimestamp(t *testing.T) {
	bus := &EventBus{handlers: make(map[string][]EventHandler)}

	done := make(chan Event, 1)
	bus.Subscribe(SessionOpened, func(e Event) error {
		done <- e
		return nil
	})
	bus.Publish(Event{Type: SessionOpened, Source: "test"})

	select {
	case e := <-done:
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("事件未送达")
	}
}
