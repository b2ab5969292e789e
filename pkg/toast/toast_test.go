package toast

import (
	"testing"
	"time"
)

func TestManagerShowDismiss(t *testing.T) {
	manager := NewManager()
	var snapshots [][]*Toast
	manager.SetOnChange(func(items []*Toast) {
		copied := make([]*Toast, len(items))
		copy(copied, items)
		snapshots = append(snapshots, copied)
	})

	id := manager.Show(LevelSuccess, "Uploaded", "3 files indexed", time.Hour)
	if id == "" {
		t.Fatal("expected non-empty toast id")
	}
	if len(snapshots) < 2 {
		t.Fatalf("expected snapshots for show, got %d", len(snapshots))
	}
	if got := snapshots[1]; len(got) != 1 || got[0].ID != id {
		t.Fatalf("unexpected toast snapshot: %#v", got)
	}

	manager.Dismiss(id)
	if len(snapshots) < 3 {
		t.Fatalf("expected snapshots for dismiss, got %d", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if len(last) != 0 {
		t.Fatalf("expected no toasts after dismiss, got %#v", last)
	}
}

func TestManagerDismissIdempotent(t *testing.T) {
	manager := NewManager()
	id := manager.Error("Upload failed", "connection lost")

	manager.Dismiss(id)
	changes := 0
	manager.SetOnChange(func([]*Toast) { changes++ })
	initial := changes

	// Second dismiss of the same id must be a no-op
	manager.Dismiss(id)
	if changes != initial {
		t.Fatalf("second dismiss should not fire onChange, got %d extra", changes-initial)
	}
	if got := manager.Active(); len(got) != 0 {
		t.Fatalf("expected empty queue, got %d toasts", len(got))
	}
}

func TestManagerExpiry(t *testing.T) {
	manager := NewManager()
	manager.Show(LevelSuccess, "One", "", 20*time.Millisecond)
	manager.Show(LevelWarning, "Two", "", 20*time.Millisecond)
	manager.Show(LevelError, "Three", "", 20*time.Millisecond)

	if got := manager.Active(); len(got) != 3 {
		t.Fatalf("expected 3 visible toasts, got %d", len(got))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(manager.Active()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("toasts did not expire, %d still visible", len(manager.Active()))
}

func TestManagerMaxCount(t *testing.T) {
	manager := NewManager()
	manager.maxCount = 1

	first := manager.Show(LevelSuccess, "First", "", time.Hour)
	second := manager.Show(LevelSuccess, "Second", "", time.Hour)

	if first == "" || second == "" {
		t.Fatal("expected non-empty toast ids")
	}
	if len(manager.toasts) != 1 {
		t.Fatalf("expected 1 toast after overflow, got %d", len(manager.toasts))
	}
	if manager.toasts[0].ID != second {
		t.Fatalf("expected latest toast retained, got %s", manager.toasts[0].ID)
	}
}
