package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/immodoc/immodoc/pkg/api"
	"github.com/immodoc/immodoc/pkg/transport"
)

var metricUploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "immodoc",
	Name:      "upload_bytes_total",
	Help:      "Bytes of document payload sent to the server.",
})

// BatchState classifies the terminal outcome of one batch.
type BatchState string

const (
	BatchSuccess BatchState = "success"
	BatchPartial BatchState = "partial"
	BatchFailure BatchState = "failure"
)

// Progress is a snapshot of batch progress, reported per progress event
// of the file currently in flight.
type Progress struct {
	FileIndex   int
	Filename    string
	BytesLoaded int64
	BytesTotal  int64
	// OverallPercent is ((completedFiles + currentFraction) / totalFiles) * 100,
	// clamped to [0,100].
	OverallPercent float64
}

// ProgressFunc receives progress snapshots during Run.
type ProgressFunc func(Progress)

// FileOutcome is one entry of the terminal ledger. Name and Size echo
// the queued file, so callers can match outcomes back to the selection.
type FileOutcome struct {
	Name string
	Size int64
	Err  error
	// ChunksIndexed is populated on success.
	ChunksIndexed int
}

// Line renders the ledger entry for this file.
func (o FileOutcome) Line() string {
	if o.Err != nil {
		return fmt.Sprintf("FAIL %s: %s", o.Name, transport.UserMessage(o.Err))
	}
	return fmt.Sprintf("OK %s (%d chunks)", o.Name, o.ChunksIndexed)
}

// Result aggregates the outcome of one batch.
type Result struct {
	Outcomes  []FileOutcome
	Succeeded int
	Failed    int
}

// State maps the success/failure counts onto the terminal classification.
func (r *Result) State() BatchState {
	switch {
	case r.Failed == 0:
		return BatchSuccess
	case r.Succeeded == 0:
		return BatchFailure
	default:
		return BatchPartial
	}
}

// Ledger returns one human-readable line per file, in upload order.
func (r *Result) Ledger() []string {
	lines := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		lines[i] = o.Line()
	}
	return lines
}

// Summary is the user-facing one-liner for the batch outcome.
func (r *Result) Summary() string {
	total := r.Succeeded + r.Failed
	switch r.State() {
	case BatchSuccess:
		return fmt.Sprintf("All %d files uploaded.", total)
	case BatchPartial:
		return fmt.Sprintf("%d of %d files uploaded, %d failed.", r.Succeeded, total, r.Failed)
	default:
		return fmt.Sprintf("Upload failed for all %d files.", total)
	}
}

// Uploader is the single network operation the pipeline depends on.
type Uploader interface {
	UploadDocument(ctx context.Context, filename string, size int64, file io.Reader, progress api.ProgressFunc) (*api.UploadResult, error)
}

// Pipeline uploads a validated batch strictly sequentially: file N+1 does
// not start until file N's outcome is recorded. One file's failure never
// aborts the rest of the queue.
type Pipeline struct {
	uploader Uploader
}

// NewPipeline creates an upload pipeline.
func NewPipeline(uploader Uploader) *Pipeline {
	return &Pipeline{uploader: uploader}
}

// Run uploads the batch and returns the terminal ledger. The context
// cancels the file currently in flight; files already recorded keep
// their outcome.
func (p *Pipeline) Run(ctx context.Context, files []File, progress ProgressFunc) *Result {
	result := &Result{}
	total := len(files)

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			result.Outcomes = append(result.Outcomes, FileOutcome{Name: f.Name, Size: f.Size, Err: err})
			result.Failed++
			continue
		}

		outcome := p.uploadOne(ctx, i, total, f, progress)
		if outcome.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
			metricUploadedBytes.Add(float64(f.Size))
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

func (p *Pipeline) uploadOne(ctx context.Context, index, total int, f File, progress ProgressFunc) FileOutcome {
	reader, err := f.Open()
	if err != nil {
		return FileOutcome{Name: f.Name, Size: f.Size, Err: err}
	}
	defer reader.Close()

	var fileProgress api.ProgressFunc
	if progress != nil {
		fileProgress = func(loaded, totalBytes int64) {
			progress(Progress{
				FileIndex:      index,
				Filename:       f.Name,
				BytesLoaded:    loaded,
				BytesTotal:     totalBytes,
				OverallPercent: overallPercent(index, total, loaded, totalBytes),
			})
		}
	}

	uploaded, err := p.uploader.UploadDocument(ctx, f.Name, f.Size, reader, fileProgress)
	if err != nil {
		return FileOutcome{Name: f.Name, Size: f.Size, Err: err}
	}
	return FileOutcome{Name: f.Name, Size: f.Size, ChunksIndexed: uploaded.ChunksIndexed}
}

func overallPercent(completed, total int, loaded, totalBytes int64) float64 {
	if total <= 0 {
		return 0
	}
	fraction := 0.0
	if totalBytes > 0 {
		fraction = float64(loaded) / float64(totalBytes)
	}
	if fraction > 1 {
		fraction = 1
	}
	percent := (float64(completed) + fraction) / float64(total) * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
