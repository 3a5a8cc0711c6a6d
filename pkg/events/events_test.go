package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe(4)
	defer unsubscribe()

	b.Publish(KindDownloadSpeed, SpeedPayload{BytesPerSecond: 1024})

	select {
	case evt := <-ch:
		assert.Equal(t, KindDownloadSpeed, evt.Kind)
		payload, ok := evt.Payload.(SpeedPayload)
		require.True(t, ok)
		assert.EqualValues(t, 1024, payload.BytesPerSecond)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(4)
	defer unsub2()

	b.Publish(KindDownloadTaskCreate, TaskCreatePayload{ChapterUUID: "c-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			payload := evt.Payload.(TaskCreatePayload)
			assert.Equal(t, "c-1", payload.ChapterUUID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublishToFullBufferDropsRatherThanBlocks(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		b.Publish(KindDownloadSpeed, SpeedPayload{BytesPerSecond: 1})
		b.Publish(KindDownloadSpeed, SpeedPayload{BytesPerSecond: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
	assert.Len(t, ch, 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe(1)
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Publish(KindDownloadTaskUpdate, TaskUpdatePayload{ChapterUUID: "x"})
	})
}
