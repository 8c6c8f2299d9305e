package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shorts-pipeline/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	jobs      []models.Job
	claimErr  error
	claims    int
	completed []string
	failed    map[string]string
}

func newFakeStore(jobs ...models.Job) *fakeStore {
	return &fakeStore{jobs: jobs, failed: make(map[string]string)}
}

func (s *fakeStore) ClaimPending(context.Context) (models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	if s.claimErr != nil {
		return models.Job{}, false, s.claimErr
	}
	if len(s.jobs) == 0 {
		return models.Job{}, false, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	job.Status = models.StatusProcessing
	return job, true, nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = reason
	return nil
}

func (s *fakeStore) CountByStatus(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.jobs)), nil
}

func (s *fakeStore) snapshot() (claims int, completed []string, failed map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	failed = make(map[string]string, len(s.failed))
	for k, v := range s.failed {
		failed[k] = v
	}
	return s.claims, append([]string(nil), s.completed...), failed
}

type fakeRunner struct {
	err error
}

func (r *fakeRunner) Process(context.Context, models.Job) error {
	return r.err
}

func runFor(t *testing.T, p *Processor, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestProcessorMarksCompleted(t *testing.T) {
	store := newFakeStore(models.Job{ID: "job-1", Status: models.StatusPending})
	p := NewProcessor(store, &fakeRunner{}, 5*time.Millisecond, 5*time.Millisecond)

	runFor(t, p, 50*time.Millisecond)

	_, completed, failed := store.snapshot()
	if len(completed) != 1 || completed[0] != "job-1" {
		t.Fatalf("expected job-1 completed, got %v", completed)
	}
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
}

func TestProcessorMarksFailedWithReason(t *testing.T) {
	store := newFakeStore(models.Job{ID: "job-1", Status: models.StatusPending})
	p := NewProcessor(store, &fakeRunner{err: ErrNoSpeech}, 5*time.Millisecond, 5*time.Millisecond)

	runFor(t, p, 50*time.Millisecond)

	_, completed, failed := store.snapshot()
	if len(completed) != 0 {
		t.Fatalf("unexpected completions: %v", completed)
	}
	if failed["job-1"] != "No speech detected in video" {
		t.Fatalf("expected failure reason recorded, got %v", failed)
	}
}

func TestProcessorIdlesWhenNothingPending(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(store, &fakeRunner{}, 10*time.Millisecond, 10*time.Millisecond)

	runFor(t, p, 55*time.Millisecond)

	claims, completed, failed := store.snapshot()
	if len(completed) != 0 || len(failed) != 0 {
		t.Fatal("no store writes expected when nothing is pending")
	}
	// Re-polled a handful of times, spaced by the poll interval, rather
	// than spinning.
	if claims < 2 || claims > 7 {
		t.Fatalf("unexpected number of polls: %d", claims)
	}
}

func TestProcessorBacksOffOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.claimErr = errors.New("store unreachable")
	p := NewProcessor(store, &fakeRunner{}, time.Millisecond, 20*time.Millisecond)

	runFor(t, p, 50*time.Millisecond)

	claims, _, _ := store.snapshot()
	// With a 20ms backoff the loop fits at most a few attempts; without
	// it the 1ms poll interval would allow dozens.
	if claims > 4 {
		t.Fatalf("expected error backoff to slow polling, got %d claims", claims)
	}
}

func TestProcessorStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(store, &fakeRunner{}, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
