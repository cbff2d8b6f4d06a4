package transwarp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonike/transwarp/eventbus"
)

// diamond builds A=2, B=3, C=A+B, D=C*2 and returns the handles.
func diamond() (*Task[int], *Task[int], *Task[int], *Task[int]) {
	a := Value("a", 2)
	b := Value("b", 3)
	c := Consume2("c", func(x, y int) (int, error) { return x + y, nil }, a, b)
	d := Consume("d", func(x int) (int, error) { return x * 2, nil }, c)
	return a, b, c, d
}

func mustGet[T any](t *testing.T, task *Task[T]) T {
	t.Helper()
	v, err := task.Future().Get(context.Background())
	if err != nil {
		t.Fatalf("Get on '%s' failed: %v", task.Label(), err)
	}
	return v
}

func TestScheduleAllSequential(t *testing.T) {
	_, _, c, d := diamond()

	if err := d.ScheduleAll(context.Background(), NewSequential()); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}
	if got := mustGet(t, d); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if got := mustGet(t, c); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestScheduleAllParallel(t *testing.T) {
	_, _, c, d := diamond()

	ex, err := NewParallel(2)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	defer ex.Close()

	if err := d.ScheduleAll(context.Background(), ex); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}
	if got := mustGet(t, d); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if got := mustGet(t, c); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestNilExecutor(t *testing.T) {
	_, _, _, d := diamond()
	err := d.ScheduleAll(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error for a nil executor")
	}
	var te *TranswarpError
	if !errors.As(err, &te) || te.Code != ErrCodeExecutor {
		t.Errorf("expected an executor error, got %v", err)
	}
}

func TestFailureFrontier(t *testing.T) {
	boom := errors.New("boom")
	var cRan atomic.Bool

	a := Value("a", 1)
	b := Consume("b", func(int) (int, error) { return 0, boom }, a)
	c := Consume("c", func(int) (int, error) {
		cRan.Store(true)
		return 0, nil
	}, b)
	e := Value("e", 5)
	final := Wait[string]("final", func() (string, error) { return "done", nil }, c, e)

	if err := final.ScheduleAll(context.Background(), NewSequential()); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}

	// b's own computation failed
	_, err := b.Future().Get(context.Background())
	var te *TranswarpError
	if !errors.As(err, &te) || te.Code != ErrCodeCompute {
		t.Fatalf("expected a compute error on b, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected b's error to wrap the original cause")
	}

	// c is downstream of the failure and must not have run
	if cRan.Load() {
		t.Error("c's computation ran despite a failed dependency")
	}
	_, err = c.Future().Get(context.Background())
	if !IsUpstream(err) {
		t.Fatalf("expected an upstream error on c, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected c's error to chain to the original cause, got %v", err)
	}

	// the final node reports the same root cause through two hops
	_, err = final.Future().Get(context.Background())
	if !IsUpstream(err) || !errors.Is(err, boom) {
		t.Errorf("expected the final error to chain to the original cause, got %v", err)
	}

	// the independent branch still resolved
	if got := mustGet(t, e); got != 5 {
		t.Errorf("expected 5 on the independent branch, got %d", got)
	}
}

func TestExactlyOncePerPass(t *testing.T) {
	var aRuns, cRuns atomic.Int64

	a := Root("a", func() (int, error) {
		aRuns.Add(1)
		return 1, nil
	})
	b := Consume("b", func(x int) (int, error) { return x + 1, nil }, a)
	c := Consume2("c", func(x, y int) (int, error) {
		cRuns.Add(1)
		return x + y, nil
	}, a, b)

	ex, err := NewParallel(4)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	defer ex.Close()

	ctx := context.Background()
	if err := c.ScheduleAll(ctx, ex); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if aRuns.Load() != 1 || cRuns.Load() != 1 {
		t.Errorf("expected each node to run once, got a=%d c=%d", aRuns.Load(), cRuns.Load())
	}

	if err := c.ScheduleAll(ctx, ex); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if aRuns.Load() != 2 || cRuns.Load() != 2 {
		t.Errorf("expected each node to run once per pass, got a=%d c=%d", aRuns.Load(), cRuns.Load())
	}
	if got := mustGet(t, c); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestRecomputeWithMutatedInput(t *testing.T) {
	var mu sync.Mutex
	input := 1

	root := Root("input", func() (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return input, nil
	})
	squared := Consume("squared", func(x int) (int, error) { return x * x, nil }, root)

	ctx := context.Background()
	ex := NewSequential()

	if err := squared.ScheduleAll(ctx, ex); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if got := mustGet(t, squared); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}

	mu.Lock()
	input = 7
	mu.Unlock()

	if err := squared.ScheduleAll(ctx, ex); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if got := mustGet(t, squared); got != 49 {
		t.Errorf("expected 49, got %d", got)
	}
}

func TestFailureClearedByNextPass(t *testing.T) {
	var mu sync.Mutex
	fail := true

	a := Root("a", func() (int, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return 0, errors.New("transient")
		}
		return 3, nil
	})
	b := Consume("b", func(x int) (int, error) { return x * 10, nil }, a)

	ctx := context.Background()
	if err := b.ScheduleAll(ctx, NewSequential()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if _, err := b.Future().Get(ctx); !IsUpstream(err) {
		t.Fatalf("expected an upstream error, got %v", err)
	}

	mu.Lock()
	fail = false
	mu.Unlock()

	if err := b.ScheduleAll(ctx, NewSequential()); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if got := mustGet(t, b); got != 30 {
		t.Errorf("expected 30, got %d", got)
	}
}

func TestFanOutSingleEvaluation(t *testing.T) {
	var runs atomic.Int64
	src := Root("source", func() (int, error) {
		runs.Add(1)
		return 10, nil
	})

	outs := make([]*Task[int], 5)
	for i := range outs {
		i := i
		outs[i] = Consume("fan", func(x int) (int, error) { return x + i, nil }, src)
	}
	all := Wait[bool]("join", func() (bool, error) { return true, nil },
		outs[0], outs[1], outs[2], outs[3], outs[4])

	ex, err := NewParallel(3)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	defer ex.Close()

	if err := all.ScheduleAll(context.Background(), ex); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("expected the shared source to run once, got %d", runs.Load())
	}
	for i, out := range outs {
		if got := mustGet(t, out); got != 10+i {
			t.Errorf("fan-out %d: expected %d, got %d", i, 10+i, got)
		}
	}
}

func TestPanicBecomesComputeError(t *testing.T) {
	a := Value("a", 1)
	b := Consume("b", func(int) (int, error) { panic("kaboom") }, a)
	c := Consume("c", func(x int) (int, error) { return x, nil }, b)

	if err := c.ScheduleAll(context.Background(), NewSequential()); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}

	_, err := b.Future().Get(context.Background())
	var te *TranswarpError
	if !errors.As(err, &te) || te.Code != ErrCodeCompute {
		t.Fatalf("expected a compute error, got %v", err)
	}
	if _, err := c.Future().Get(context.Background()); !IsUpstream(err) {
		t.Errorf("expected an upstream error on c, got %v", err)
	}
}

func TestCancelledContextFailsNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, d := diamond()
	if err := d.ScheduleAll(ctx, NewSequential()); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}

	_, err := d.Future().Get(context.Background())
	var te *TranswarpError
	if !errors.As(err, &te) {
		t.Fatalf("expected a TranswarpError, got %v", err)
	}
	if te.Code != ErrCodeCancelled && te.Code != ErrCodeUpstream {
		t.Errorf("expected a cancelled or upstream error, got code %s", te.Code)
	}
}

func TestSequentialExecutionOrder(t *testing.T) {
	a := Value("a", 1)
	b := Value("b", 2)
	c := Consume2("c", func(x, y int) (int, error) { return x + y, nil }, a, b)
	d := Consume("d", func(x int) (int, error) { return x, nil }, c)

	var order []string
	err := d.ScheduleAll(context.Background(), NewSequential(),
		WithObserver(func(ev eventbus.Event) {
			if ev.Type == eventbus.EventNodeStarted {
				order = append(order, ev.NodeLabel)
			}
		}))
	if err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	if len(order) != len(want) {
		t.Fatalf("expected %d node starts, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestOverlappingPassRejected(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})

	a := Root("gated", func() (int, error) {
		close(started)
		<-gate
		return 1, nil
	})
	b := Consume("b", func(x int) (int, error) { return x, nil }, a)

	ex, err := NewParallel(2)
	if err != nil {
		t.Fatalf("NewParallel failed: %v", err)
	}
	defer ex.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.ScheduleAll(context.Background(), ex)
	}()

	<-started
	err = b.ScheduleAll(context.Background(), NewSequential())
	var te *TranswarpError
	if !errors.As(err, &te) || te.Code != ErrCodeInternal {
		t.Errorf("expected an in-flight pass error, got %v", err)
	}

	close(gate)
	wg.Wait()
	if got := mustGet(t, b); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestPassEvents(t *testing.T) {
	_, _, _, d := diamond()

	var mu sync.Mutex
	counts := map[eventbus.EventType]int{}
	err := d.ScheduleAll(context.Background(), NewSequential(),
		WithObserver(func(ev eventbus.Event) {
			mu.Lock()
			defer mu.Unlock()
			counts[ev.Type]++
			if ev.PassID == "" {
				t.Error("event without a pass id")
			}
		}))
	if err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}

	if counts[eventbus.EventPassStarted] != 1 || counts[eventbus.EventPassFinished] != 1 {
		t.Errorf("expected one pass start and finish, got %v", counts)
	}
	if counts[eventbus.EventNodeStarted] != 4 || counts[eventbus.EventNodeReady] != 4 {
		t.Errorf("expected 4 node starts and readies, got %v", counts)
	}
}

func TestEventBusIntegration(t *testing.T) {
	bus := eventbus.NewChannelBus()
	defer bus.Close()

	var ready atomic.Int64
	if _, err := bus.Subscribe([]eventbus.EventType{eventbus.EventNodeReady},
		func(ctx context.Context, ev eventbus.Event) error {
			ready.Add(1)
			return nil
		}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	_, _, _, d := diamond()
	if err := d.ScheduleAll(context.Background(), NewSequential(), WithEventBus(bus)); err != nil {
		t.Fatalf("ScheduleAll failed: %v", err)
	}

	deadline := time.After(time.Second)
	for ready.Load() != 4 {
		select {
		case <-deadline:
			t.Fatalf("expected 4 node_ready events, got %d", ready.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
