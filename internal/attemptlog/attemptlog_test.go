package attemptlog

import (
	"sync"
	"testing"

	"gatekeeper/internal/domain"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	attempts := New()

	for i, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		attempt := attempts.Append(ip, "DE", domain.StatusBlocked)
		if attempt.ID != i+1 {
			t.Fatalf("attempt %d got id %d, want %d", i, attempt.ID, i+1)
		}
		if attempt.Timestamp.IsZero() {
			t.Fatal("attempt timestamp must be set")
		}
	}

	listed := attempts.List(1, 10)
	if len(listed) != 3 {
		t.Fatalf("List returned %d attempts, want 3", len(listed))
	}
	for i, attempt := range listed {
		if attempt.ID != i+1 {
			t.Fatalf("listed[%d].ID = %d, want %d", i, attempt.ID, i+1)
		}
	}
}

func TestListPagination(t *testing.T) {
	attempts := New()
	for i := 0; i < 5; i++ {
		attempts.Append("203.0.113.1", "DE", domain.StatusBlocked)
	}

	first := attempts.List(1, 2)
	if len(first) != 2 || first[0].ID != 1 || first[1].ID != 2 {
		t.Fatalf("page 1 = %+v, want ids 1 and 2", first)
	}

	last := attempts.List(3, 2)
	if len(last) != 1 || last[0].ID != 5 {
		t.Fatalf("page 3 = %+v, want only id 5", last)
	}

	if got := attempts.List(4, 2); len(got) != 0 {
		t.Fatalf("page past the end returned %d attempts, want 0", len(got))
	}
}

func TestDeleteNeverReusesIDs(t *testing.T) {
	attempts := New()
	attempts.Append("203.0.113.1", "DE", domain.StatusBlocked)
	attempts.Append("203.0.113.2", "FR", domain.StatusBlocked)

	if !attempts.Delete(2) {
		t.Fatal("Delete(2) should report the attempt existed")
	}
	if attempts.Delete(2) {
		t.Fatal("Delete(2) twice should report false")
	}

	next := attempts.Append("203.0.113.3", "RU", domain.StatusBlocked)
	if next.ID != 3 {
		t.Fatalf("id after delete = %d, want 3: ids are never reused", next.ID)
	}
}

func TestConcurrentAppend(t *testing.T) {
	attempts := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				attempts.Append("203.0.113.1", "DE", domain.StatusBlocked)
			}
		}()
	}
	wg.Wait()

	if attempts.Len() != 1000 {
		t.Fatalf("Len = %d, want 1000", attempts.Len())
	}

	seen := make(map[int]struct{}, 1000)
	for page := 1; page <= 10; page++ {
		for _, attempt := range attempts.List(page, 100) {
			if _, dup := seen[attempt.ID]; dup {
				t.Fatalf("duplicate id %d", attempt.ID)
			}
			seen[attempt.ID] = struct{}{}
		}
	}
	if len(seen) != 1000 {
		t.Fatalf("saw %d distinct ids, want 1000", len(seen))
	}
}
