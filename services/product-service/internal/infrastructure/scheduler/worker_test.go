package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bibbank/bib/services/product-service/internal/application/dto"
)

type mockDueRunner struct {
	mu       sync.Mutex
	requests []dto.RunDueSchedulesRequest
	results  []dto.RunDueSchedulesResponse
	err      error
}

func (m *mockDueRunner) Execute(_ context.Context, req dto.RunDueSchedulesRequest) (dto.RunDueSchedulesResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return dto.RunDueSchedulesResponse{}, m.err
	}
	if len(m.results) == 0 {
		return dto.RunDueSchedulesResponse{}, nil
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r, nil
}

func (m *mockDueRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func newTestWorker(runner DueRunner, batchSize int) *Worker {
	w := NewWorker(runner, 5*time.Millisecond, batchSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC) }
	return w
}

func TestWorker_SweepRepeatsWhileBatchesAreFull(t *testing.T) {
	runner := &mockDueRunner{results: []dto.RunDueSchedulesResponse{
		{Ran: 2},
		{Ran: 1, Failed: 1},
		{Ran: 1},
	}}
	newTestWorker(runner, 2).sweep(context.Background())

	assert.Equal(t, 3, runner.calls())
	assert.Equal(t, 2, runner.requests[0].Limit)
	assert.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), runner.requests[0].Now)
}

func TestWorker_SweepStopsWhenOnlyFailuresRemain(t *testing.T) {
	runner := &mockDueRunner{results: []dto.RunDueSchedulesResponse{{Failed: 2}, {Ran: 2}}}
	newTestWorker(runner, 2).sweep(context.Background())

	assert.Equal(t, 1, runner.calls())
}

func TestWorker_SweepStopsOnError(t *testing.T) {
	runner := &mockDueRunner{err: errors.New("db down")}
	newTestWorker(runner, 2).sweep(context.Background())

	assert.Equal(t, 1, runner.calls())
}

func TestWorker_RunTicksUntilCancelled(t *testing.T) {
	runner := &mockDueRunner{}
	w := newTestWorker(runner, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return runner.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
