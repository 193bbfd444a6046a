package services

import (
	"errors"
	"testing"

	"github.com/tokenarena/pnl-indexer/internal/testutil"
)

func TestJobTracker(t *testing.T) {
	t.Run("tracks a job through its lifecycle", func(t *testing.T) {
		tracker := NewJobTracker(10)

		job := NewJob(testutil.AliceAddress, testutil.ArenaTokenAddress, 42, 7)
		if job.ID == "" {
			t.Fatal("expected a generated job id")
		}
		if job.Status != JobStatusQueued {
			t.Fatalf("expected queued, got %s", job.Status)
		}

		tracker.Add(job)

		tracker.MarkRunning(job.ID)
		got, ok := tracker.Get(job.ID)
		if !ok {
			t.Fatal("expected job to be tracked")
		}
		if got.Status != JobStatusRunning {
			t.Errorf("expected running, got %s", got.Status)
		}
		if got.StartedAt == nil {
			t.Error("expected started_at to be set")
		}

		tracker.MarkCompleted(job.ID, 3, 25, 40)
		got, _ = tracker.Get(job.ID)
		if got.Status != JobStatusCompleted {
			t.Errorf("expected completed, got %s", got.Status)
		}
		if got.PagesFetched != 3 || got.SwapsSeen != 25 || got.TradesInserted != 40 {
			t.Errorf("unexpected counters: %+v", got)
		}
		if got.FinishedAt == nil {
			t.Error("expected finished_at to be set")
		}

		stats := tracker.Stats()
		if stats.Completed != 1 {
			t.Errorf("expected 1 completed, got %d", stats.Completed)
		}
	})

	t.Run("records failures with the error text", func(t *testing.T) {
		tracker := NewJobTracker(10)

		job := NewJob(testutil.AliceAddress, testutil.ArenaTokenAddress, 0, 0)
		tracker.Add(job)
		tracker.MarkRunning(job.ID)
		tracker.MarkFailed(job.ID, errors.New("feed unavailable"))

		got, _ := tracker.Get(job.ID)
		if got.Status != JobStatusFailed {
			t.Errorf("expected failed, got %s", got.Status)
		}
		if got.Error != "feed unavailable" {
			t.Errorf("expected error text, got %q", got.Error)
		}

		stats := tracker.Stats()
		if stats.Failed != 1 {
			t.Errorf("expected 1 failed, got %d", stats.Failed)
		}
	})

	t.Run("evicts the oldest finished job past capacity", func(t *testing.T) {
		tracker := NewJobTracker(2)

		first := NewJob(testutil.AliceAddress, testutil.ArenaTokenAddress, 0, 0)
		second := NewJob(testutil.BobAddress, testutil.ArenaTokenAddress, 0, 0)
		tracker.Add(first)
		tracker.Add(second)
		tracker.MarkCompleted(first.ID, 1, 1, 1)

		// second is still queued; first is finished and goes
		third := NewJob(testutil.CharlieAddress, testutil.ArenaTokenAddress, 0, 0)
		tracker.Add(third)

		if _, ok := tracker.Get(first.ID); ok {
			t.Error("expected the finished job to be evicted")
		}
		if _, ok := tracker.Get(second.ID); !ok {
			t.Error("expected the queued job to survive eviction")
		}
		if _, ok := tracker.Get(third.ID); !ok {
			t.Error("expected the new job to be tracked")
		}

		stats := tracker.Stats()
		if stats.Evicted != 1 {
			t.Errorf("expected 1 evicted, got %d", stats.Evicted)
		}
	})

	t.Run("evicts the oldest job when nothing has finished", func(t *testing.T) {
		tracker := NewJobTracker(2)

		first := NewJob(testutil.AliceAddress, testutil.ArenaTokenAddress, 0, 0)
		second := NewJob(testutil.BobAddress, testutil.ArenaTokenAddress, 0, 0)
		third := NewJob(testutil.CharlieAddress, testutil.ArenaTokenAddress, 0, 0)
		tracker.Add(first)
		tracker.Add(second)
		tracker.Add(third)

		if _, ok := tracker.Get(first.ID); ok {
			t.Error("expected the oldest job to be evicted")
		}
		if _, ok := tracker.Get(second.ID); !ok {
			t.Error("expected the second job to survive")
		}
	})

	t.Run("snapshot returns jobs newest first", func(t *testing.T) {
		tracker := NewJobTracker(10)

		first := NewJob(testutil.AliceAddress, testutil.ArenaTokenAddress, 0, 0)
		second := NewJob(testutil.BobAddress, testutil.ArenaTokenAddress, 0, 0)
		tracker.Add(first)
		tracker.Add(second)

		snapshot := tracker.Snapshot()
		if len(snapshot) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(snapshot))
		}
		if snapshot[0].ID != second.ID {
			t.Errorf("expected newest job first, got %s", snapshot[0].ID)
		}
	})

	t.Run("get returns a copy the caller cannot mutate", func(t *testing.T) {
		tracker := NewJobTracker(10)

		job := NewJob(testutil.AliceAddress, testutil.ArenaTokenAddress, 0, 0)
		tracker.Add(job)

		got, _ := tracker.Get(job.ID)
		got.Status = JobStatusFailed

		fresh, _ := tracker.Get(job.ID)
		if fresh.Status != JobStatusQueued {
			t.Errorf("expected tracker state untouched, got %s", fresh.Status)
		}
	})
}
