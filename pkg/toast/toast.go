package toast

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Level indicates the severity of a toast notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	// DefaultDuration is how long a toast stays visible before it
	// removes itself.
	DefaultDuration = 3 * time.Second
	DefaultMaxCount = 5
)

// Toast represents a transient notification.
type Toast struct {
	ID        string
	Level     Level
	Title     string
	Details   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Manager manages active toast notifications. Each toast expires on its
// own timer; dismissing an already-removed id is a no-op.
type Manager struct {
	mu       sync.RWMutex
	toasts   []*Toast
	timers   map[string]*time.Timer
	maxCount int
	onChange func([]*Toast)
}

// NewManager creates a toast manager with default limits.
func NewManager() *Manager {
	return &Manager{
		maxCount: DefaultMaxCount,
		timers:   make(map[string]*time.Timer),
	}
}

// SetOnChange configures the callback for toast updates.
func (m *Manager) SetOnChange(fn func([]*Toast)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.onChange = fn
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// Show creates a new toast and returns its ID.
func (m *Manager) Show(level Level, title, details string, duration time.Duration) string {
	if m == nil {
		return ""
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	toast := &Toast{
		ID:        ulid.Make().String(),
		Level:     level,
		Title:     strings.TrimSpace(title),
		Details:   strings.TrimSpace(details),
		Duration:  duration,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	if m.timers == nil {
		m.timers = make(map[string]*time.Timer)
	}
	if m.maxCount <= 0 {
		m.maxCount = DefaultMaxCount
	}
	m.toasts = append(m.toasts, toast)
	m.timers[toast.ID] = time.AfterFunc(duration, func() {
		m.Dismiss(toast.ID)
	})

	if overflow := len(m.toasts) - m.maxCount; overflow > 0 {
		for i := 0; i < overflow; i++ {
			removed := m.toasts[0]
			m.toasts = m.toasts[1:]
			m.stopTimerLocked(removed.ID)
		}
	}

	snapshot := m.snapshotLocked()
	cb := m.onChange
	m.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
	return toast.ID
}

// Success shows a success toast.
func (m *Manager) Success(title, details string) string {
	return m.Show(LevelSuccess, title, details, DefaultDuration)
}

// Warning shows a warning toast.
func (m *Manager) Warning(title, details string) string {
	return m.Show(LevelWarning, title, details, DefaultDuration)
}

// Error shows an error toast.
func (m *Manager) Error(title, details string) string {
	return m.Show(LevelError, title, details, DefaultDuration)
}

// Dismiss removes a toast by ID.
func (m *Manager) Dismiss(id string) {
	if m == nil || strings.TrimSpace(id) == "" {
		return
	}
	m.mu.Lock()
	if len(m.toasts) == 0 {
		m.mu.Unlock()
		return
	}
	found := false
	remaining := m.toasts[:0]
	for _, t := range m.toasts {
		if t.ID == id {
			found = true
			m.stopTimerLocked(id)
			continue
		}
		remaining = append(remaining, t)
	}
	m.toasts = remaining
	if !found {
		m.mu.Unlock()
		return
	}
	snapshot := m.snapshotLocked()
	cb := m.onChange
	m.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// Active returns a snapshot of the currently visible toasts.
func (m *Manager) Active() []*Toast {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) stopTimerLocked(id string) {
	if m.timers == nil {
		return
	}
	if timer, ok := m.timers[id]; ok {
		timer.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) snapshotLocked() []*Toast {
	if m == nil || len(m.toasts) == 0 {
		return nil
	}
	out := make([]*Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}
