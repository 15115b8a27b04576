package sequence

import (
	"sync"
	"testing"
)

func TestSequencer_Monotonic(t *testing.T) {
	s := New(10)
	if got := s.Next(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
	s.Reset(100)
	if got := s.Next(); got != 101 {
		t.Fatalf("expected 101 after reset, got %d", got)
	}
	if s.Current() != 101 {
		t.Errorf("expected current 101, got %d", s.Current())
	}
}

func TestSequencer_ConcurrentUnique(t *testing.T) {
	s := New(0)
	const n = 1000
	seen := make([]uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = s.Next()
		}(i)
	}
	wg.Wait()

	set := make(map[uint64]bool, n)
	for _, v := range seen {
		if set[v] {
			t.Fatalf("duplicate ticket %d", v)
		}
		set[v] = true
	}
	if s.Current() != n {
		t.Errorf("expected current %d, got %d", n, s.Current())
	}
}

func TestLedger_Order(t *testing.T) {
	var l Ledger
	l.Take(3)
	l.Take(1)
	l.Take(2)

	got := l.Owners()
	want := []int{3, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
