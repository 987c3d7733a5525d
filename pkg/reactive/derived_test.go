package reactive

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDeriveBasic(t *testing.T) {
	sc := newTestScope(t)
	count := NewSignal(sc, 5)

	computations := 0
	doubled, err := Derive(sc, count, func(v int) int {
		computations++
		return v * 2
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if doubled.Get() != 10 {
		t.Errorf("expected 10, got %d", doubled.Get())
	}
	if computations != 1 {
		t.Errorf("expected 1 computation, got %d", computations)
	}
	doubled.Get()
	if computations != 1 {
		t.Errorf("expected cached read, got %d computations", computations)
	}
}

func TestDeriveIsLazy(t *testing.T) {
	sc := newTestScope(t)
	count := NewSignal(sc, 1)

	computations := 0
	doubled, _ := Derive(sc, count, func(v int) int {
		computations++
		return v * 2
	})

	count.Set(2)
	count.Set(3)
	if computations != 1 {
		t.Errorf("expected no recomputation without readers, got %d", computations)
	}
	if doubled.Get() != 6 {
		t.Errorf("expected 6, got %d", doubled.Get())
	}
	if computations != 2 {
		t.Errorf("expected one recomputation for two writes, got %d", computations)
	}
}

func TestDeriveDedup(t *testing.T) {
	sc := newTestScope(t)
	n := NewSignal(sc, 0)
	even, _ := Derive(sc, n, func(v int) bool { return v%2 == 0 })

	var got recorder[bool]
	even.Subscribe(got.add)

	n.Set(2)
	n.Set(4)
	n.Set(5)
	n.Set(7)
	n.Set(8)

	if want := []bool{false, true}; !reflect.DeepEqual(got.get(), want) {
		t.Errorf("expected %v, got %v", want, got.get())
	}
}

func TestDeriveChain(t *testing.T) {
	sc := newTestScope(t)
	a := NewSignal(sc, 1)
	b, _ := Derive(sc, a, func(v int) int { return v + 1 })
	c, _ := Derive(sc, b, func(v int) int { return v * 10 })

	var got recorder[int]
	c.Watch(got.add)
	a.Set(2)
	a.Set(3)

	if want := []int{20, 30, 40}; !reflect.DeepEqual(got.get(), want) {
		t.Errorf("expected %v, got %v", want, got.get())
	}
	if c.Rank() != 2 || b.Rank() != 1 {
		t.Errorf("expected ranks 1 and 2, got %d and %d", b.Rank(), c.Rank())
	}
}

type diamondSample struct {
	A, D1, Sum int
}

func TestDeriveGlitchFree(t *testing.T) {
	sc := newTestScope(t)
	x := NewSignal(sc, 1)
	y := NewSignal(sc, 1)

	d1, _ := Derive2(sc, x, y, func(a, b int) int { return a * 100 / b })
	computations := 0
	d2, _ := Derive2(sc, x, d1, func(a, v int) diamondSample {
		computations++
		return diamondSample{A: a, D1: v, Sum: a + v}
	})

	var got recorder[diamondSample]
	d2.Watch(got.add)
	x.Set(2)
	x.Set(3)

	values := got.get()
	if len(values) != 3 {
		t.Fatalf("expected one emission per change, got %v", values)
	}
	for _, v := range values {
		if v.D1 != v.A*100 {
			t.Errorf("observed mixed state %+v", v)
		}
	}
	if computations != 3 {
		t.Errorf("expected 3 computations, got %d", computations)
	}
}

func TestDeriveDiamondRecomputesOnce(t *testing.T) {
	sc := newTestScope(t)
	root := NewSignal(sc, 1)
	left, _ := Derive(sc, root, func(v int) int { return v + 1 })
	right, _ := Derive(sc, root, func(v int) int { return v * 2 })

	var computations atomic.Int32
	bottom, _ := Derive2(sc, left, right, func(l, r int) int {
		computations.Add(1)
		return l + r
	})

	var got recorder[int]
	bottom.Subscribe(got.add)
	root.Set(5)

	if computations.Load() != 2 {
		t.Errorf("expected initial + 1 computation, got %d", computations.Load())
	}
	if want := []int{16}; !reflect.DeepEqual(got.get(), want) {
		t.Errorf("expected %v, got %v", want, got.get())
	}
}

func TestDeriveSharedCache(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 1)

	computations := 0
	d, _ := Derive(sc, s, func(v int) int {
		computations++
		return v * 3
	})

	var a, b recorder[int]
	d.Subscribe(a.add)
	d.Subscribe(b.add)
	s.Set(2)

	if computations != 2 {
		t.Errorf("expected subscribers to share one computation, got %d", computations)
	}
	if !reflect.DeepEqual(a.get(), []int{6}) || !reflect.DeepEqual(b.get(), []int{6}) {
		t.Errorf("expected both subscribers to see 6, got %v and %v", a.get(), b.get())
	}
}

func TestDeriveComputeFailureIsIsolated(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 1)
	d, err := Derive(sc, s, func(v int) int {
		if v < 0 {
			panic("negative")
		}
		return v * 2
	}, WithName("double"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	sibling, _ := Derive(sc, s, func(v int) int { return v })

	s.Set(-1)
	if d.Get() != 2 {
		t.Errorf("expected last good value 2, got %d", d.Get())
	}
	var cerr *ComputeError
	if !errors.As(d.Err(), &cerr) {
		t.Fatalf("expected ComputeError, got %v", d.Err())
	}
	if cerr.Node != "double" || cerr.Value != "negative" {
		t.Errorf("unexpected error fields %+v", cerr)
	}
	if sibling.Get() != -1 {
		t.Errorf("sibling must be unaffected, got %d", sibling.Get())
	}

	s.Set(4)
	if d.Get() != 8 || d.Err() != nil {
		t.Errorf("expected recovery to 8 with no error, got %d, %v", d.Get(), d.Err())
	}
}

func TestDeriveInitialFailureReturned(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)

	errDiv := errors.New("division by zero")
	d, err := Derive(sc, s, func(v int) int {
		if v == 0 {
			panic(errDiv)
		}
		return 10 / v
	})
	if d != nil {
		t.Errorf("expected no node on failure")
	}
	if !errors.Is(err, errDiv) {
		t.Errorf("expected error wrapping the panic value, got %v", err)
	}
	if s.Subscribers() != 0 {
		t.Errorf("failed construction must detach, got %d subscribers", s.Subscribers())
	}
}

func TestDeriveAllRequiresDependencies(t *testing.T) {
	sc := newTestScope(t)
	_, err := DeriveAll(sc, nil, func([]int) int { return 0 })
	if !errors.Is(err, ErrNoDependencies) {
		t.Errorf("expected ErrNoDependencies, got %v", err)
	}
}

func TestDeriveAllAndDerive3(t *testing.T) {
	sc := newTestScope(t)
	a := NewSignal(sc, 1)
	b := NewSignal(sc, 2)
	c := NewSignal(sc, 3)

	sum, _ := DeriveAll(sc, []Readable[int]{a, b, c}, func(vs []int) int {
		total := 0
		for _, v := range vs {
			total += v
		}
		return total
	})
	prod, _ := Derive3(sc, a, b, c, func(x, y, z int) int { return x * y * z })

	if sum.Get() != 6 || prod.Get() != 6 {
		t.Errorf("expected 6 and 6, got %d and %d", sum.Get(), prod.Get())
	}
	c.Set(4)
	if sum.Get() != 7 || prod.Get() != 8 {
		t.Errorf("expected 7 and 8, got %d and %d", sum.Get(), prod.Get())
	}
}

func TestCombine(t *testing.T) {
	sc := newTestScope(t)
	a := NewSignal(sc, 1)
	b := NewSignal(sc, 2)

	pair, err := Combine[int](sc, a, b)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}

	var got recorder[[]int]
	pair.Subscribe(got.add)
	a.Set(10)
	Batch(func(tx *Tx) {
		a.SetTx(tx, 20)
		b.SetTx(tx, 30)
	})

	want := [][]int{{10, 2}, {20, 30}}
	if !reflect.DeepEqual(got.get(), want) {
		t.Errorf("expected %v, got %v", want, got.get())
	}
}

func TestDeriveFailedDependencyDoesNotBlock(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 1)
	fragile, _ := Derive(sc, s, func(v int) int {
		if v > 5 {
			panic("too big")
		}
		return v
	})
	other := NewSignal(sc, 100)
	both, _ := Derive2(sc, fragile, other, func(f, o int) int { return f + o })

	s.Set(10)
	other.Set(200)
	if both.Get() != 201 {
		t.Errorf("expected combination over last good value, got %d", both.Get())
	}
	if fragile.Err() == nil {
		t.Errorf("expected failure surfaced on the failing node")
	}
}

func TestDeriveUnsubscribeAndScopeClose(t *testing.T) {
	root := newTestScope(t)
	sc := root.Child()
	s := NewSignal(root, 1)
	d, _ := Derive(sc, s, func(v int) int { return v })

	calls := 0
	cancel := d.Subscribe(func(int) { calls++ })
	s.Set(2)
	cancel()
	s.Set(3)
	if calls != 1 {
		t.Errorf("expected 1 call before cancel, got %d", calls)
	}

	d.Subscribe(func(int) { calls++ })
	sc.Close()
	s.Set(4)
	if calls != 1 {
		t.Errorf("expected no calls after scope close, got %d", calls)
	}
	if s.Subscribers() != 0 {
		t.Errorf("expected derived detached from signal, got %d", s.Subscribers())
	}
}

func TestDeriveConcurrentWriters(t *testing.T) {
	sc := newTestScope(t)
	s := NewSignal(sc, 0)
	d, _ := Derive(sc, s, func(v int) int { return v * 2 })

	var seen recorder[int]
	d.Subscribe(seen.add)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Update(func(v int) int { return v + 1 })
				_ = d.Get()
			}
		}()
	}
	wg.Wait()

	if d.Get() != 400 {
		t.Errorf("expected 400, got %d", d.Get())
	}
	values := seen.get()
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			t.Fatalf("expected increasing values, got %v", values)
		}
	}
	if len(values) == 0 || values[len(values)-1] != 400 {
		t.Errorf("expected last delivered value 400, got %v", values)
	}
}
