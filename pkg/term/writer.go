// Package term provides styled terminal output. No TUI framework, just
// print and scroll.
package term

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Writer provides styled terminal output.
type Writer struct {
	out io.Writer
	mu  sync.Mutex

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	headerStyle  lipgloss.Style
}

// New creates a Writer on stdout.
func New() *Writer {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a Writer with a custom output destination.
func NewWithOutput(out io.Writer) *Writer {
	return &Writer{
		out: out,

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),

		boldStyle: lipgloss.NewStyle().Bold(true),

		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
			Bold(true),
	}
}

// Print writes formatted text.
func (w *Writer) Print(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

// Println writes formatted text with a newline.
func (w *Writer) Println(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Success writes a green line.
func (w *Writer) Success(format string, args ...any) {
	w.styled(w.successStyle, format, args...)
}

// Warning writes a yellow line.
func (w *Writer) Warning(format string, args ...any) {
	w.styled(w.warnStyle, format, args...)
}

// Error writes a red line.
func (w *Writer) Error(format string, args ...any) {
	w.styled(w.errorStyle, format, args...)
}

// Dim writes a muted line for secondary content.
func (w *Writer) Dim(format string, args ...any) {
	w.styled(w.dimStyle, format, args...)
}

// Header writes a bold section header.
func (w *Writer) Header(text string) {
	w.styled(w.headerStyle, "%s", text)
}

// Bold renders text bold inline.
func (w *Writer) Bold(text string) string {
	return w.boldStyle.Render(text)
}

func (w *Writer) styled(style lipgloss.Style, format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, style.Render(fmt.Sprintf(format, args...)))
}
