package transwarp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestSequentialRunsInline(t *testing.T) {
	ran := false
	NewSequential().Submit(func() { ran = true })
	if !ran {
		t.Error("expected the job to run before Submit returned")
	}
}

func TestNewParallelRejectsBadWorkerCounts(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := NewParallel(n)
		var te *TranswarpError
		if !errors.As(err, &te) || te.Code != ErrCodeExecutor {
			t.Errorf("NewParallel(%d): expected an executor error, got %v", n, err)
		}
	}
}

func TestParallelWorkers(t *testing.T) {
	ex, err := NewParallel(3)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	defer ex.Close()
	if ex.Workers() != 3 {
		t.Errorf("expected 3 workers, got %d", ex.Workers())
	}
}

func TestParallelReusedAcrossGraphs(t *testing.T) {
	ex, err := NewParallel(2)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	defer ex.Close()

	ctx := context.Background()
	var total atomic.Int64
	for i := 0; i < 3; i++ {
		i := i
		root := Root("n", func() (int, error) { return i, nil })
		sq := Consume("sq", func(x int) (int, error) { return x * x, nil }, root)
		if err := sq.ScheduleAll(ctx, ex); err != nil {
			t.Fatalf("pass %d failed: %v", i, err)
		}
		v, err := sq.Future().Get(ctx)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		total.Add(int64(v))
	}
	if total.Load() != 0+1+4 {
		t.Errorf("expected 5, got %d", total.Load())
	}
}
