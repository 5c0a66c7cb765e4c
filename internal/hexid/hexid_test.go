package hexid

import "testing"

func TestNew(t *testing.T) {
	a := New()
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if a == New() {
		t.Error("two calls returned the same id")
	}
}

func TestNewLong(t *testing.T) {
	id := NewLong()
	if len(id) != 16 {
		t.Errorf("len = %d, want 16", len(id))
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("non-hex character %q in %q", c, id)
		}
	}
}
