package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blockcache/blockcache/pkg/types"
)

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestNew_AllKeysPresentAtZero(t *testing.T) {
	keys := []string{"A", "B", "C"}
	st := New(keys)
	for _, k := range keys {
		e, err := st.Get(k)
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if e.Volume != 0 {
			t.Errorf("Get(%s).Volume: got %v, want 0", k, e.Volume)
		}
		if !e.UpdatedAt.IsZero() {
			t.Errorf("Get(%s).UpdatedAt: got %v, want zero", k, e.UpdatedAt)
		}
	}
}

func TestNew_DuplicatesCollapse(t *testing.T) {
	st := New([]string{"A", "B", "A"})
	if st.Len() != 2 {
		t.Errorf("Len: got %d, want 2", st.Len())
	}
	keys := st.Keys()
	if len(keys) != 2 || keys[0] != "A" || keys[1] != "B" {
		t.Errorf("Keys: got %v, want [A B]", keys)
	}
}

func TestGet_Unregistered(t *testing.T) {
	st := New([]string{"A"})
	_, err := st.Get("Z")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Get unregistered: got %v, want ErrNotFound", err)
	}
}

func TestSet_OverwritesAndStamps(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := New([]string{"A"})
	st.now = fixedClock(at)

	if err := st.Set("A", 1.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set("A", 2.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	e, _ := st.Get("A")
	if e.Volume != 2.5 {
		t.Errorf("Volume: got %v, want 2.5", e.Volume)
	}
	if !e.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt: got %v, want %v", e.UpdatedAt, at)
	}
}

func TestSet_UnregisteredDoesNotAdd(t *testing.T) {
	st := New([]string{"A"})
	if err := st.Set("Z", 9); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Set unregistered: got %v, want ErrNotFound", err)
	}
	if st.Len() != 1 {
		t.Errorf("Len after Set(Z): got %d, want 1", st.Len())
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	st := New([]string{"A"})
	st.Set("A", 1)
	e, _ := st.Get("A")
	e.Volume = 99

	again, _ := st.Get("A")
	if again.Volume != 1 {
		t.Errorf("Volume after mutating copy: got %v, want 1", again.Volume)
	}
}

func TestSnapshot_Order(t *testing.T) {
	st := New([]string{"C", "A", "B"})
	st.Set("A", 1)
	snap := st.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot len: got %d, want 3", len(snap))
	}
	want := []string{"C", "A", "B"}
	for i, e := range snap {
		if e.Key != want[i] {
			t.Errorf("Snapshot[%d].Key: got %q, want %q", i, e.Key, want[i])
		}
	}
	if snap[1].Volume != 1 {
		t.Errorf("Snapshot[1].Volume: got %v, want 1", snap[1].Volume)
	}
}

// Readers of key A must only ever see A's value while B is being rewritten,
// and must never see ErrNotFound.
func TestConcurrentReadersDuringWrites(t *testing.T) {
	st := New([]string{"A", "B"})
	st.Set("A", 10)

	stop := make(chan struct{})
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			st.Set("B", float64(i))
		}
	}()

	errs := make(chan error, 16)
	var readers sync.WaitGroup
	for r := 0; r < 16; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 2000; i++ {
				e, err := st.Get("A")
				if err != nil {
					errs <- err
					return
				}
				if e.Volume != 10 {
					errs <- errors.New("reader saw a value A never held")
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writer.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("reader: %v", err)
	}
}
