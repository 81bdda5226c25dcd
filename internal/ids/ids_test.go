package ids

import (
	"sort"
	"sync"
	"testing"
)

func TestNewIsUniqueAndSortable(t *testing.T) {
	const n = 1000
	seen := make(map[string]bool, n)
	ordered := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	if !sort.StringsAreSorted(ordered) {
		t.Fatal("ids generated in sequence are not lexicographically ordered")
	}
}

func TestNewIsSafeForConcurrentUse(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200

	var (
		mu  sync.Mutex
		all = make(map[string]bool, goroutines*perGoroutine)
		wg  sync.WaitGroup
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				local = append(local, New())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if all[id] {
					t.Errorf("duplicate id under concurrency: %s", id)
				}
				all[id] = true
			}
		}()
	}
	wg.Wait()
}
