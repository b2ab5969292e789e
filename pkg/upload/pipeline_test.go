package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immodoc/immodoc/pkg/api"
	"github.com/immodoc/immodoc/pkg/transport"
)

// fakeUploader fails uploads at the given zero-based positions.
type fakeUploader struct {
	calls   int
	failAt  map[int]error
	drained []string
}

func (f *fakeUploader) UploadDocument(ctx context.Context, filename string, size int64, file io.Reader, progress api.ProgressFunc) (*api.UploadResult, error) {
	index := f.calls
	f.calls++

	// Drain the body in two chunks so per-file progress fires more than once.
	half := size / 2
	if progress != nil && half > 0 {
		progress(half, size)
	}
	io.Copy(io.Discard, file)
	if progress != nil {
		progress(size, size)
	}

	if err, failed := f.failAt[index]; failed {
		return nil, err
	}
	f.drained = append(f.drained, filename)
	return &api.UploadResult{DocumentID: int64(index + 1), Filename: filename, ChunksIndexed: 2}, nil
}

func memFile(name string, content string) File {
	return File{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "application/pdf",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func batch(n int) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = memFile(fmt.Sprintf("doc-%d.pdf", i), "%PDF-1.4 payload payload payload")
	}
	return files
}

func TestRunAllSucceed(t *testing.T) {
	uploader := &fakeUploader{}
	result := NewPipeline(uploader).Run(context.Background(), batch(3), nil)

	assert.Equal(t, BatchSuccess, result.State())
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	ledger := result.Ledger()
	require.Len(t, ledger, 3)
	for _, line := range ledger {
		assert.True(t, strings.HasPrefix(line, "OK "), "line %q", line)
	}
	assert.Contains(t, result.Summary(), "All 3 files")
}

func TestRunFailuresAtKnownPositions(t *testing.T) {
	uploader := &fakeUploader{failAt: map[int]error{
		1: &transport.TransportError{Status: 413, Message: "File too large"},
		3: &transport.TransportError{IsTimeout: true},
	}}
	result := NewPipeline(uploader).Run(context.Background(), batch(5), nil)

	assert.Equal(t, BatchPartial, result.State())
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Failed)

	ledger := result.Ledger()
	require.Len(t, ledger, 5)
	for i, line := range ledger {
		if i == 1 || i == 3 {
			assert.True(t, strings.HasPrefix(line, "FAIL doc-"+fmt.Sprint(i)), "line %q", line)
		} else {
			assert.True(t, strings.HasPrefix(line, "OK doc-"+fmt.Sprint(i)), "line %q", line)
		}
	}
	assert.Contains(t, result.Summary(), "3 of 5")

	// One file's failure must not abort the queue
	assert.Equal(t, []string{"doc-0.pdf", "doc-2.pdf", "doc-4.pdf"}, uploader.drained)
}

func TestRunAllFail(t *testing.T) {
	uploader := &fakeUploader{failAt: map[int]error{
		0: &transport.TransportError{Message: "connection refused"},
		1: &transport.TransportError{Message: "connection refused"},
	}}
	result := NewPipeline(uploader).Run(context.Background(), batch(2), nil)

	assert.Equal(t, BatchFailure, result.State())
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Contains(t, result.Summary(), "all 2 files")
}

func TestRunProgressMonotonic(t *testing.T) {
	uploader := &fakeUploader{failAt: map[int]error{
		1: &transport.TransportError{Status: 500, Message: "boom"},
	}}

	var percents []float64
	result := NewPipeline(uploader).Run(context.Background(), batch(4), func(p Progress) {
		percents = append(percents, p.OverallPercent)
		assert.GreaterOrEqual(t, p.BytesTotal, p.BytesLoaded)
	})

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1],
			"overall percent regressed at %d: %v", i, percents)
	}
	assert.LessOrEqual(t, percents[len(percents)-1], 100.0)
	assert.Equal(t, BatchPartial, result.State())
}

func TestRunSequentialOrder(t *testing.T) {
	uploader := &fakeUploader{}
	var order []string
	NewPipeline(uploader).Run(context.Background(), batch(3), func(p Progress) {
		if len(order) == 0 || order[len(order)-1] != p.Filename {
			order = append(order, p.Filename)
		}
	})

	// Strictly sequential: each file's progress is contiguous and in batch order
	assert.Equal(t, []string{"doc-0.pdf", "doc-1.pdf", "doc-2.pdf"}, order)
}

func TestRunUnreadableFile(t *testing.T) {
	files := []File{{
		Name: "ghost.pdf",
		Size: 10,
		Open: func() (io.ReadCloser, error) {
			return nil, fmt.Errorf("no such file")
		},
	}}
	result := NewPipeline(&fakeUploader{}).Run(context.Background(), files, nil)

	assert.Equal(t, BatchFailure, result.State())
	require.Len(t, result.Outcomes, 1)
	assert.Error(t, result.Outcomes[0].Err)
}
