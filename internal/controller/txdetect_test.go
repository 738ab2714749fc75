package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
)

// fakeTxReader serves programmable cumulative TX counters keyed by veth
// name.
type fakeTxReader struct {
	mu    sync.Mutex
	bytes map[string]uint64
}

func newFakeTxReader() *fakeTxReader {
	return &fakeTxReader{bytes: make(map[string]uint64)}
}

func (f *fakeTxReader) TxBytes(pid int, ifaceName string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytes[ifaceName], nil
}

func (f *fakeTxReader) set(ifaceName string, count uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bytes[ifaceName] = count
}

func TestTxActivityDetector(t *testing.T) {
	doc := p2pDoc()
	channel := newFakeChannelClient()
	backend := newFakeBackend()
	c := newTestController(t, doc, channel, backend)

	_, err := c.Deploy(context.Background(), false)
	require.NoError(t, err)

	reader := newFakeTxReader()
	det := NewTxActivityDetector(c, reader, TxDetectorConfig{})

	t0 := time.Now()
	det.pollOnce(context.Background(), t0) // seeds counters, no rates yet

	// Node a pushes ~160Mbps over the next 100ms window; node b stays
	// silent, so only b's state flips (nodes default to transmitting).
	reader.set("veth-a-wlan0", 2_000_000)
	channel.setSingle(channelsvc.ComputeSingleResponse{SNRDB: 12, PER: 0.05, RateMbps: 60, DelayMs: 2})
	initialCalls := len(backend.p2pCalls)
	det.pollOnce(context.Background(), t0.Add(100*time.Millisecond))

	channel.mu.Lock()
	bActive, bKnown := channel.active["b"]
	_, aKnown := channel.active["a"]
	channel.mu.Unlock()
	require.True(t, bKnown, "the silent node's state must be pushed to the channel service")
	assert.False(t, bActive)
	assert.False(t, aKnown, "a node whose state did not flip must not be pushed")

	assert.Greater(t, len(backend.p2pCalls), initialCalls, "a state flip must recompute the links it affects")

	t.Run("rate above threshold flips the node back", func(t *testing.T) {
		reader.set("veth-b-wlan0", 5_000_000)
		det.pollOnce(context.Background(), t0.Add(200*time.Millisecond))

		channel.mu.Lock()
		bActive := channel.active["b"]
		channel.mu.Unlock()
		assert.True(t, bActive)
	})
}
