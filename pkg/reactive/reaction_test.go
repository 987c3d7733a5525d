package reactive

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestReactionRunsImmediatelyThenOnChange(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)

	var got recorder[int]
	r, err := React(sc, s, func(ctx context.Context, v int) error {
		got.add(v)
		return nil
	})
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if want := []int{0}; !reflect.DeepEqual(got.get(), want) {
		t.Fatalf("expected the first run inside the constructor, got %v", got.get())
	}

	s.Set(1)
	s.Set(2)
	eventually(t, func() bool { return got.len() == 3 }, "expected 3 runs, got %v", got.get())
	if want := []int{0, 1, 2}; !reflect.DeepEqual(got.get(), want) {
		t.Errorf("expected runs in order %v, got %v", want, got.get())
	}
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
}

func TestReactionInitialFailure(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)

	errBoom := errors.New("boom")
	r, err := React(sc, s, func(context.Context, int) error { return errBoom })
	if r != nil || !errors.Is(err, errBoom) {
		t.Fatalf("expected constructor failure, got %v, %v", r, err)
	}
	if s.Subscribers() != 0 {
		t.Errorf("failed reaction must release its subscription, got %d", s.Subscribers())
	}
}

func TestReactionTeardownOnScopeClose(t *testing.T) {
	root := newTestScope(t)
	sc := root.Child()
	s := NewSignal(root, 0)

	var runs atomic.Int32
	r, _ := React(sc, s, func(context.Context, int) error {
		runs.Add(1)
		return nil
	})

	sc.Close()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected reaction done after scope close")
	}

	s.Set(1)
	time.Sleep(10 * time.Millisecond)
	if runs.Load() != 1 {
		t.Errorf("expected no runs after teardown, got %d", runs.Load())
	}
	if s.Subscribers() != 0 {
		t.Errorf("expected subscription released, got %d", s.Subscribers())
	}
}

func TestReactionStop(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)

	var runs atomic.Int32
	r, _ := React(sc, s, func(context.Context, int) error {
		runs.Add(1)
		return nil
	})
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	s.Set(1)
	time.Sleep(10 * time.Millisecond)
	if runs.Load() != 1 {
		t.Errorf("expected no runs after Stop, got %d", runs.Load())
	}
	if sc.Closed() {
		t.Errorf("stopping a reaction must not close its scope")
	}
}

func TestReactionFailureEndsReaction(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)

	errBoom := errors.New("boom")
	var runs atomic.Int32
	r, _ := React(sc, s, func(ctx context.Context, v int) error {
		runs.Add(1)
		if v == 2 {
			return errBoom
		}
		return nil
	})

	s.Set(1)
	s.Set(2)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected reaction to end after a failed run")
	}
	if !errors.Is(r.Err(), errBoom) {
		t.Errorf("expected Err to report the failure, got %v", r.Err())
	}

	s.Set(3)
	time.Sleep(10 * time.Millisecond)
	if runs.Load() != 3 {
		t.Errorf("expected no runs after failure, got %d", runs.Load())
	}

	if err := sc.Close(); !errors.Is(err, errBoom) {
		t.Errorf("expected the failure reported to the scope, got %v", err)
	}
}

func TestReactionPanicIsFailure(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)

	_, err := React(sc, s, func(context.Context, int) error { panic("bad effect") })
	var cerr *ComputeError
	if !errors.As(err, &cerr) || cerr.Value != "bad effect" {
		t.Errorf("expected ComputeError, got %v", err)
	}
}

func TestReaction2JointChanges(t *testing.T) {
	sc := newTestScope(t)
	first := NewSignal(sc, "a")
	second := NewSignal(sc, 1)

	type run struct {
		S string
		N int
	}
	var got recorder[run]
	_, err := React2(sc, first, second, func(ctx context.Context, s string, n int) error {
		got.add(run{s, n})
		return nil
	})
	if err != nil {
		t.Fatalf("react2: %v", err)
	}

	Batch(func(tx *Tx) {
		first.SetTx(tx, "b")
		second.SetTx(tx, 2)
	})
	second.Set(3)

	eventually(t, func() bool { return got.len() == 3 }, "expected 3 runs, got %v", got.get())
	want := []run{{"a", 1}, {"b", 2}, {"b", 3}}
	if !reflect.DeepEqual(got.get(), want) {
		t.Errorf("expected %v, got %v", want, got.get())
	}
}

func TestReaction3AndReactAll(t *testing.T) {
	sc := newTestScope(t)
	a := NewSignal(sc, 1)
	b := NewSignal(sc, 2)
	c := NewSignal(sc, 3)

	var sums recorder[int]
	_, err := React3(sc, a, b, c, func(ctx context.Context, x, y, z int) error {
		sums.add(x + y + z)
		return nil
	})
	if err != nil {
		t.Fatalf("react3: %v", err)
	}
	var all recorder[[]int]
	_, err = ReactAll(sc, []Readable[int]{a, b, c}, func(ctx context.Context, vs []int) error {
		all.add(vs)
		return nil
	})
	if err != nil {
		t.Fatalf("reactall: %v", err)
	}

	c.Set(10)
	eventually(t, func() bool { return sums.len() == 2 && all.len() == 2 }, "expected 2 runs each")
	if want := []int{6, 13}; !reflect.DeepEqual(sums.get(), want) {
		t.Errorf("expected %v, got %v", want, sums.get())
	}
	if want := [][]int{{1, 2, 3}, {1, 2, 10}}; !reflect.DeepEqual(all.get(), want) {
		t.Errorf("expected %v, got %v", want, all.get())
	}
}
