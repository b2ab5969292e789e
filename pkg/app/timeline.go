package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/immodoc/immodoc/pkg/api"
	apperrors "github.com/immodoc/immodoc/pkg/errors"
	"github.com/immodoc/immodoc/pkg/logging"
	"github.com/immodoc/immodoc/pkg/timeline"
	"github.com/immodoc/immodoc/pkg/transport"
)

// TimelineView is the derived, display-ready timeline: current filters
// applied, sorted, grouped by date. It is recomputed from the raw items
// on every call, never cached.
type TimelineView struct {
	Groups     []timeline.Group
	Categories []timeline.Category
	Total      int
	Shown      int
}

// ExtractTimeline replaces the timeline items with the extraction result
// for pasted raw text. Extraction is wholesale: previous items are gone
// even when the new set is empty.
func (a *App) ExtractTimeline(ctx context.Context, rawText string) error {
	if err := a.begin(AreaTimeline); err != nil {
		return err
	}

	if strings.TrimSpace(rawText) == "" {
		err := apperrors.New(apperrors.ErrCodeInvalidInput, "empty extraction text").
			WithUserMessage("Please paste some text to extract from.")
		a.finish(AreaTimeline, StateError, err.UserMessage)
		a.notifyWarning("Nothing to extract", err.UserMessage)
		return err
	}

	result, err := a.api.ExtractTimeline(ctx, rawText)
	if err != nil {
		msg := transport.UserMessage(err)
		a.finish(AreaTimeline, StateError, msg)
		a.logError(logging.CategoryTimeline, "extract_failed", err)
		a.notifyError("Extraction failed", msg)
		return err
	}

	a.replaceItems(result.Items)
	summary := fmt.Sprintf("%d entries extracted.", len(result.Items))
	a.finish(AreaTimeline, StateSuccess, summary)
	a.notifySuccess("Extraction complete", summary)
	return nil
}

// ExtractFromDocuments replaces the timeline items with an extraction
// across the indexed corpus. A nil documentIDs means all documents.
func (a *App) ExtractFromDocuments(ctx context.Context, documentIDs []int64) error {
	if err := a.begin(AreaTimeline); err != nil {
		return err
	}

	result, err := a.api.ExtractTimelineFromDocuments(ctx, documentIDs)
	if err != nil {
		msg := transport.UserMessage(err)
		a.finish(AreaTimeline, StateError, msg)
		a.logError(logging.CategoryTimeline, "extract_documents_failed", err)
		a.notifyError("Extraction failed", msg)
		return err
	}

	a.replaceItems(result.Items)
	summary := fmt.Sprintf("%d entries from %d of %d documents.",
		len(result.Items), result.DocumentsProcessed, result.DocumentsConsidered)
	a.finish(AreaTimeline, StateSuccess, summary)
	if len(result.DocumentsFailed) > 0 {
		a.notifyWarning("Extraction finished with gaps",
			fmt.Sprintf("%s Skipped: %s", summary, strings.Join(result.DocumentsFailed, ", ")))
	} else {
		a.notifySuccess("Extraction complete", summary)
	}
	return nil
}

func (a *App) replaceItems(items []api.TimelineItem) {
	a.mu.Lock()
	a.items = items
	a.mu.Unlock()
}

// SetTimelineFilters replaces the active filters. Filtering is a view
// concern only; the raw item set is untouched.
func (a *App) SetTimelineFilters(filter timeline.Filter) {
	a.mu.Lock()
	a.filter = filter
	a.mu.Unlock()
}

// TimelineFilters returns the active filters.
func (a *App) TimelineFilters() timeline.Filter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter
}

// Timeline computes the current derived view.
func (a *App) Timeline() TimelineView {
	a.mu.Lock()
	items := make([]api.TimelineItem, len(a.items))
	copy(items, a.items)
	filter := a.filter
	a.mu.Unlock()

	shown := timeline.FilterItems(items, filter)
	return TimelineView{
		Groups:     timeline.GroupByDate(timeline.SortItems(shown)),
		Categories: timeline.Categories(items),
		Total:      len(items),
		Shown:      len(shown),
	}
}
