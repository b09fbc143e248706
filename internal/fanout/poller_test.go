package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	counts map[string]int
	err    error
	calls  int
}

func (s *stubFetcher) UnreadSnapshot(_ context.Context, _ string) (map[string]int, error) {
	s.calls++
	return s.counts, s.err
}

func TestPollOverwritesTracker(t *testing.T) {
	tr := NewTracker("me", nil)
	fetcher := &stubFetcher{counts: map[string]int{"conv-1": 3}}
	p := &Poller{Tracker: tr, Fetcher: fetcher, UserID: "me", Log: zap.NewNop()}

	p.poll(context.Background())

	require.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 3, tr.Unread("conv-1"))
}

func TestPollKeepsStateOnFetchError(t *testing.T) {
	tr := NewTracker("me", nil)
	tr.ApplyAuthoritative(map[string]int{"conv-1": 2})

	fetcher := &stubFetcher{err: errors.New("store down")}
	p := &Poller{Tracker: tr, Fetcher: fetcher, UserID: "me", Log: zap.NewNop()}

	p.poll(context.Background())

	// A failed poll must not wipe the last known counters.
	assert.Equal(t, 2, tr.Unread("conv-1"))
}
