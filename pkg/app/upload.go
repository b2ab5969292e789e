package app

import (
	"context"
	"fmt"

	apperrors "github.com/immodoc/immodoc/pkg/errors"
	"github.com/immodoc/immodoc/pkg/logging"
	"github.com/immodoc/immodoc/pkg/upload"
)

// SelectFiles validates candidates and merges the accepted ones into the
// pending selection. Rejected files never enter the queue; each rejection
// surfaces as a notification, not an area error.
func (a *App) SelectFiles(files []upload.File) (added int, rejected []upload.ValidationError) {
	valid, rejected := upload.ValidateFiles(files)

	a.mu.Lock()
	before := len(a.selection)
	a.selection = upload.MergeSelection(a.selection, valid)
	added = len(a.selection) - before
	a.mu.Unlock()

	for _, r := range rejected {
		a.notifyWarning("File rejected", r.Error())
	}
	if added > 0 {
		a.logInfo(logging.CategoryUpload, "files_selected", "", map[string]any{"added": added})
	}
	return added, rejected
}

// Selection returns a snapshot of the pending upload queue.
func (a *App) Selection() []upload.File {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]upload.File, len(a.selection))
	copy(out, a.selection)
	return out
}

// ClearSelection empties the pending upload queue.
func (a *App) ClearSelection() {
	a.mu.Lock()
	a.selection = nil
	a.mu.Unlock()
}

// Upload runs the pending selection through the pipeline. On full success
// the selection clears; on partial success only the failed files stay
// queued for a retry. Any success triggers a best-effort document refresh.
func (a *App) Upload(ctx context.Context, progress upload.ProgressFunc) (*upload.Result, error) {
	if err := a.begin(AreaUpload); err != nil {
		return nil, err
	}

	files := a.Selection()
	if len(files) == 0 {
		err := apperrors.New(apperrors.ErrCodeInvalidInput, "no files selected").
			WithUserMessage("Please select at least one PDF file first.")
		a.finish(AreaUpload, StateError, err.UserMessage)
		a.notifyWarning("Nothing to upload", err.UserMessage)
		return nil, err
	}

	result := a.pipeline.Run(ctx, files, progress)

	// Retention keys on (name, size), the same identity the selection
	// dedupes on, so a name collision never retains a succeeded file.
	type fileKey struct {
		name string
		size int64
	}
	failed := make(map[fileKey]struct{})
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			failed[fileKey{outcome.Name, outcome.Size}] = struct{}{}
		}
	}

	a.mu.Lock()
	kept := a.selection[:0]
	for _, f := range a.selection {
		if _, stillFailed := failed[fileKey{f.Name, f.Size}]; stillFailed {
			kept = append(kept, f)
		}
	}
	a.selection = kept
	a.mu.Unlock()

	summary := result.Summary()
	switch result.State() {
	case upload.BatchSuccess:
		a.finish(AreaUpload, StateSuccess, summary)
		a.notifySuccess("Upload complete", summary)
	case upload.BatchPartial:
		a.finish(AreaUpload, StateError, summary)
		a.notifyWarning("Upload partially failed", summary)
	default:
		a.finish(AreaUpload, StateError, summary)
		a.notifyError("Upload failed", summary)
	}

	a.logInfo(logging.CategoryUpload, "batch_finished", summary, map[string]any{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})

	if result.Succeeded > 0 {
		a.refreshDocumentsBestEffort(ctx)
	}
	if result.Failed > 0 {
		return result, fmt.Errorf("%d of %d uploads failed", result.Failed, result.Succeeded+result.Failed)
	}
	return result, nil
}
