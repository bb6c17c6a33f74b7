package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	fetch "github.com/abdul-hamid-achik/hostfetch/packages/http"
)

// invalidErr builds a real invalid-request error through the client.
func invalidErr(t *testing.T) error {
	t.Helper()
	_, err := fetch.NewClient().Execute(context.Background(), fetch.NewDescriptor("BAD METHOD", "https://example.test"))
	if !fetch.IsInvalidRequest(err) {
		t.Fatalf("expected invalid request error, got %v", err)
	}
	return err
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.Record(10*time.Millisecond, &fetch.Envelope{Status: 200}, nil)
	m.Record(20*time.Millisecond, &fetch.Envelope{Status: 200, IsBase64: true}, nil)
	m.Record(30*time.Millisecond, nil, errors.New("dial tcp: refused"))
	m.Record(0, nil, invalidErr(t))
	m.RecordRejected()

	s := m.Snapshot()
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Success)
	assert.Equal(t, int64(1), s.Binary)
	assert.Equal(t, int64(1), s.Transport)
	assert.Equal(t, int64(1), s.InvalidRequest)
	assert.Equal(t, int64(0), s.Internal)
	assert.Equal(t, int64(1), s.Rejected)
	assert.InDelta(t, 0.5, s.ErrorRate, 0.0001)

	assert.InDelta(t, 20, s.P50Ms, 0.1)
	assert.InDelta(t, 30, s.MaxMs, 0.1)
	assert.InDelta(t, 20, s.MeanMs, 0.1)
}

func TestMetrics_ClampsLatency(t *testing.T) {
	m := NewMetrics()
	m.Record(0, &fetch.Envelope{}, nil)
	m.Record(2*time.Minute, &fetch.Envelope{}, nil)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Success)
	assert.InDelta(t, 60_000, s.MaxMs, 60)
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	s := NewMetrics().Snapshot()
	assert.Zero(t, s.Total)
	assert.Zero(t, s.ErrorRate)
	assert.Zero(t, s.P99Ms)
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.Record(time.Millisecond, &fetch.Envelope{}, nil)
	m.RecordRejected()
	m.Reset()

	s := m.Snapshot()
	assert.Zero(t, s.Total)
	assert.Zero(t, s.Rejected)
	assert.Zero(t, s.MaxMs)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Record(time.Duration(i)*time.Millisecond, &fetch.Envelope{}, nil)
			_ = m.Snapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Snapshot().Total)
}
