package annostore

import (
	"os"
	"path/filepath"
	"testing"
)

func testStatusStore(t *testing.T) *StatusStore {
	t.Helper()
	return NewStatusStore(filepath.Join(t.TempDir(), "ink_status", "ink_status.json"))
}

func TestStatusDefaults(t *testing.T) {
	st := testStatusStore(t)
	got := st.Get("unknown_slide")
	if got.Done || got.InkFound {
		t.Errorf("default status = %+v, want both false", got)
	}
	if got.LastUpdated.IsZero() {
		t.Error("default status missing last_updated")
	}
}

func TestStatusSetGet(t *testing.T) {
	st := testStatusStore(t)

	set, err := st.Set("slide_a", true, false)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !set.Done || set.InkFound {
		t.Errorf("Set returned %+v", set)
	}

	got := st.Get("slide_a")
	if !got.Done || got.InkFound {
		t.Errorf("Get = %+v, want done=true ink=false", got)
	}

	// Other slides stay untouched.
	if other := st.Get("slide_b"); other.Done {
		t.Errorf("slide_b leaked status: %+v", other)
	}
}

func TestStatusPersistsAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ink_status.json")
	first := NewStatusStore(path)
	if _, err := first.Set("slide_a", true, true); err != nil {
		t.Fatal(err)
	}

	second := NewStatusStore(path)
	got := second.Get("slide_a")
	if !got.Done || !got.InkFound {
		t.Errorf("reloaded status = %+v", got)
	}
}

func TestStatusMalformedFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ink_status.json")
	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	st := NewStatusStore(path)

	got := st.Get("slide_a")
	if got.Done || got.InkFound {
		t.Errorf("status from corrupt file = %+v, want defaults", got)
	}

	// Writing repairs the file.
	if _, err := st.Set("slide_a", true, false); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if got := st.Get("slide_a"); !got.Done {
		t.Errorf("status after repair = %+v", got)
	}
}

func TestStatusCounts(t *testing.T) {
	st := testStatusStore(t)
	_, _ = st.Set("a", true, true)
	_, _ = st.Set("b", true, false)
	_, _ = st.Set("c", false, true)
	_, _ = st.Set("d", false, false)

	done, inkFound := st.Counts()
	if done != 2 {
		t.Errorf("done = %d, want 2", done)
	}
	if inkFound != 2 {
		t.Errorf("ink_found = %d, want 2", inkFound)
	}
}
