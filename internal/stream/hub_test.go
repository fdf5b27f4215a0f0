package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_SubscribeDeliversCurrent(t *testing.T) {
	h := NewHub(7, nil)
	ch, cancel := h.Subscribe()
	defer cancel()

	assert.Equal(t, 7, <-ch)
	assert.Equal(t, 1, h.Len())
}

func TestHub_PublishUpdatesCurrent(t *testing.T) {
	h := NewHub(1, nil)
	h.Publish(2)
	assert.Equal(t, 2, h.Current())

	ch, cancel := h.Subscribe()
	defer cancel()
	assert.Equal(t, 2, <-ch)
}

func TestHub_LatestWins(t *testing.T) {
	h := NewHub(0, nil)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(1)
	h.Publish(2)
	h.Publish(3)

	assert.Equal(t, 3, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestHub_ClonesValues(t *testing.T) {
	clone := func(s []string) []string { return append([]string(nil), s...) }
	h := NewHub([]string{"a"}, clone)

	ch1, cancel1 := h.Subscribe()
	defer cancel1()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()

	v1 := <-ch1
	v1[0] = "mutated"
	assert.Equal(t, "a", (<-ch2)[0])
	assert.Equal(t, "a", h.Current()[0])
}

func TestHub_Cancel(t *testing.T) {
	h := NewHub("a", nil)
	ch, cancel := h.Subscribe()
	<-ch
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())

	// Publishing after cancel must not panic.
	h.Publish("b")
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1, nil)
	ch, cancel := h.Subscribe()
	<-ch
	h.Close()
	h.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	h.Publish(5)
	assert.Equal(t, 1, h.Current())
}
