package sessions

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRegistryUninitialized(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Current(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Current() error = %v, want ErrNotInitialized", err)
	}
	if _, err := r.Get("abc"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Get() error = %v, want ErrNotInitialized", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	first := &Session{ID: NewID()}
	second := &Session{ID: NewID()}

	if evicted := r.Replace(first); evicted != nil {
		t.Fatalf("first Replace evicted %v", evicted.ID)
	}
	if evicted := r.Replace(second); evicted != first {
		t.Fatalf("second Replace evicted %v, want first", evicted)
	}

	cur, err := r.Current()
	if err != nil || cur != second {
		t.Fatalf("Current() = %v, %v; want second", cur, err)
	}
	if _, err := r.Get(first.ID); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Get(first) error = %v, want ErrUnknownSession", err)
	}
	if got, err := r.Get(second.ID); err != nil || got != second {
		t.Errorf("Get(second) = %v, %v", got, err)
	}
	if got, _ := r.Get(""); got != second {
		t.Errorf("Get(\"\") should resolve to current")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestNewIDIsUUID(t *testing.T) {
	id := NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("NewID() = %q is not a uuid: %v", id, err)
	}
	if id == NewID() {
		t.Error("NewID() returned the same id twice")
	}
}

func TestRegistryConcurrentReplace(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Replace(&Session{ID: NewID()})
			r.Current()
		}()
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Errorf("Len() = %d after concurrent replaces, want 1", r.Len())
	}
}
