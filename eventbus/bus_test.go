package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(size int) *Bus {
	return New(size, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func drain(sub *Subscription) []string {
	var out []string
	for {
		select {
		case e := <-sub.C():
			out = append(out, e.Message)
		default:
			return out
		}
	}
}

func TestBus_CategoryIsolation(t *testing.T) {
	bus := newTestBus(10)

	errA, err := bus.Subscribe(interfaces.TopicError)
	require.NoError(t, err)
	errB, err := bus.Subscribe(interfaces.TopicError)
	require.NoError(t, err)
	info, err := bus.Subscribe(interfaces.TopicInfo)
	require.NoError(t, err)
	success, err := bus.Subscribe(interfaces.TopicSuccess)
	require.NoError(t, err)

	bus.Publish(interfaces.TopicError, "quorum unreachable")

	assert.Equal(t, []string{"quorum unreachable"}, drain(errA))
	assert.Equal(t, []string{"quorum unreachable"}, drain(errB))
	assert.Empty(t, drain(info))
	assert.Empty(t, drain(success))
}

func TestBus_NoReplayToLateSubscribers(t *testing.T) {
	bus := newTestBus(10)

	bus.Publish(interfaces.TopicInfo, "before")
	sub, err := bus.Subscribe(interfaces.TopicInfo)
	require.NoError(t, err)
	bus.Publish(interfaces.TopicInfo, "after")

	assert.Equal(t, []string{"after"}, drain(sub))
}

func TestBus_DropNewestWhenFull(t *testing.T) {
	bus := newTestBus(2)
	slow, err := bus.Subscribe(interfaces.TopicAutolock)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for _, m := range []string{"3", "2", "1", "0"} {
			bus.Publish(interfaces.TopicAutolock, m)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	assert.Equal(t, []string{"3", "2"}, drain(slow))
	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, uint64(2), bus.Dropped())
	assert.Equal(t, uint64(4), bus.Published())
}

func TestBus_UnknownTopic(t *testing.T) {
	bus := newTestBus(1)
	_, err := bus.Subscribe("weather")
	assert.Error(t, err)
}

func TestBus_SubscriptionClose(t *testing.T) {
	bus := newTestBus(1)
	sub, err := bus.Subscribe(interfaces.TopicInfo)
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	bus.Publish(interfaces.TopicInfo, "ignored")

	_, ok := <-sub.C()
	assert.False(t, ok, "Channel should be closed")
}

func TestBus_Close(t *testing.T) {
	bus := newTestBus(1)
	sub, err := bus.Subscribe(interfaces.TopicError)
	require.NoError(t, err)

	bus.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	_, err = bus.Subscribe(interfaces.TopicError)
	assert.Error(t, err)
	bus.Publish(interfaces.TopicError, "after close")
	sub.Close()
}

type fakeNATS struct {
	mu       sync.Mutex
	subjects []string
	events   []interfaces.Event
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	var e interfaces.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subj)
	f.events = append(f.events, e)
	return nil
}

func (f *fakeNATS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestNATSForwarder(t *testing.T) {
	bus := newTestBus(10)
	conn := &fakeNATS{}
	fwd := NewNATSForwarder(conn, bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- fwd.Run(ctx) }()

	// Wait until the forwarder has subscribed to every topic.
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs[interfaces.TopicSuccess]) == 1
	}, time.Second, 5*time.Millisecond)

	bus.Publish(interfaces.TopicSuccess, "wallet unlocked")
	require.Eventually(t, func() bool { return conn.count() == 1 }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	assert.Equal(t, "wallet.events.success", conn.subjects[0])
	assert.Equal(t, "wallet unlocked", conn.events[0].Message)
	conn.mu.Unlock()

	cancel()
	require.NoError(t, <-errCh)
}
