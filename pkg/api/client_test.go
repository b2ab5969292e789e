package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immodoc/immodoc/pkg/transport"
)

// newBackend builds a chi-routed stand-in for the document service.
func newBackend(t *testing.T, configure func(r chi.Router)) *Client {
	t.Helper()
	router := chi.NewRouter()
	configure(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	tc := transport.NewClient(transport.Options{BaseURL: server.URL})
	t.Cleanup(func() { tc.Close() })
	return New(tc, 7)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestHealth(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, map[string]bool{"ok": true})
		})
	})

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.OK)
}

func TestListDocuments(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Get("/documents", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "7", req.URL.Query().Get("property_id"))
			writeJSON(w, []Document{
				{DocumentID: 1, PropertyID: 7, Filename: "lease.pdf"},
				{DocumentID: 2, PropertyID: 7, Filename: "protocol.pdf"},
			})
		})
	})

	docs, err := client.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "lease.pdf", docs[0].Filename)
}

func TestUploadDocument(t *testing.T) {
	var gotPropertyID, gotFilename string
	var gotBytes []byte

	client := newBackend(t, func(r chi.Router) {
		r.Post("/documents/upload", func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			gotPropertyID = req.FormValue("property_id")
			file, header, err := req.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			gotFilename = header.Filename
			gotBytes, _ = io.ReadAll(file)
			writeJSON(w, UploadResult{DocumentID: 42, Filename: header.Filename, ChunksIndexed: 3})
		})
	})

	content := []byte("%PDF-1.4 test content")
	var updates []int64
	result, err := client.UploadDocument(context.Background(), "lease.pdf", int64(len(content)),
		bytes.NewReader(content), func(loaded, total int64) {
			assert.Equal(t, int64(len(content)), total)
			updates = append(updates, loaded)
		})
	require.NoError(t, err)

	assert.Equal(t, int64(42), result.DocumentID)
	assert.Equal(t, 3, result.ChunksIndexed)
	assert.Equal(t, "7", gotPropertyID)
	assert.Equal(t, "lease.pdf", gotFilename)
	assert.Equal(t, content, gotBytes)

	require.NotEmpty(t, updates, "progress callback should fire")
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i], updates[i-1], "progress must be monotonic")
	}
	assert.Equal(t, int64(len(content)), updates[len(updates)-1])
}

func TestChat(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
			var payload struct {
				Question   string `json:"question"`
				PropertyID int64  `json:"property_id"`
			}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.Equal(t, "When is the rent due?", payload.Question)
			assert.Equal(t, int64(7), payload.PropertyID)
			score := 0.93
			writeJSON(w, ChatAnswer{
				Answer:  "Rent is due on the 3rd of each month.",
				Sources: []Source{{DocumentID: 1, ChunkID: 12, Score: &score}},
			})
		})
	})

	answer, err := client.Chat(context.Background(), "When is the rent due?")
	require.NoError(t, err)
	assert.Contains(t, answer.Answer, "3rd")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "1:12", answer.Sources[0].Key())
}

func TestChatHistory(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Get("/chat/history", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "7", req.URL.Query().Get("property_id"))
			writeJSON(w, []HistoryMessage{
				{ID: 1, Role: "user", Text: "When is the rent due?"},
				{ID: 2, Role: "assistant", Text: "On the 3rd.", Sources: []Source{{DocumentID: 1, ChunkID: 4}}},
			})
		})
	})

	history, err := client.ChatHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[1].ID)
	assert.Equal(t, "assistant", history[1].Role)
	require.Len(t, history[1].Sources, 1)
	assert.Equal(t, "1:4", history[1].Sources[0].Key())
}

func TestClearChatHistory(t *testing.T) {
	var cleared bool
	client := newBackend(t, func(r chi.Router) {
		r.Delete("/chat/history", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "7", req.URL.Query().Get("property_id"))
			cleared = true
			writeJSON(w, map[string]bool{"deleted": true})
		})
	})

	require.NoError(t, client.ClearChatHistory(context.Background()))
	assert.True(t, cleared)
}

func TestSourceSnippet(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Get("/documents/source", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "1", req.URL.Query().Get("document_id"))
			assert.Equal(t, "12", req.URL.Query().Get("chunk_id"))
			writeJSON(w, map[string]string{"snippet": "§3 Die Miete ist am dritten Werktag fällig."})
		})
	})

	snippet, err := client.SourceSnippet(context.Background(), 1, 12)
	require.NoError(t, err)
	assert.Contains(t, snippet, "Miete")
}

func TestWaitForUploadJob(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Get("/documents/upload-jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "9", chi.URLParam(req, "id"))
			writeJSON(w, UploadJob{JobID: 9, Status: JobCompleted, ProcessedCount: 4})
		})
	})

	job, err := client.WaitForUploadJob(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 4, job.ProcessedCount)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobProcessing.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}

func TestExtractTimeline(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Post("/timeline/extract", func(w http.ResponseWriter, req *http.Request) {
			var payload struct {
				RawText string `json:"raw_text"`
			}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.NotEmpty(t, payload.RawText)
			writeJSON(w, ExtractionResult{Items: []TimelineItem{
				{Title: "Rent payment", DateISO: "2026-03-03", Category: "payment"},
			}})
		})
	})

	result, err := client.ExtractTimeline(context.Background(), "Rent due March 3rd 2026")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "payment", result.Items[0].Category)
}

func TestExtractTimelineFromDocuments(t *testing.T) {
	client := newBackend(t, func(r chi.Router) {
		r.Post("/timeline/extract-documents", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, DocumentExtractionResult{
				Items:               []TimelineItem{{Title: "Handover", DateISO: "2026-04-01", Category: "meeting"}},
				DocumentsConsidered: 3,
				DocumentsProcessed:  2,
				DocumentsFailed:     []string{"scan.pdf"},
			})
		})
	})

	result, err := client.ExtractTimelineFromDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.DocumentsConsidered)
	assert.Equal(t, 2, result.DocumentsProcessed)
	assert.Equal(t, []string{"scan.pdf"}, result.DocumentsFailed)
}

func TestDeleteDocument(t *testing.T) {
	var deleted string
	client := newBackend(t, func(r chi.Router) {
		r.Delete("/documents/{id}", func(w http.ResponseWriter, req *http.Request) {
			deleted = chi.URLParam(req, "id")
			writeJSON(w, map[string]bool{"deleted": true})
		})
	})

	require.NoError(t, client.DeleteDocument(context.Background(), 42))
	assert.Equal(t, "42", deleted)
}
