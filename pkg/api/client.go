// Package api provides typed access to the document-intelligence service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/immodoc/immodoc/pkg/transport"
)

// ProgressFunc receives byte-level progress while a file body is sent.
type ProgressFunc func(bytesLoaded, bytesTotal int64)

// Client wraps the transport with one typed method per endpoint. It holds
// no mutable collections; results flow back to the orchestrator.
type Client struct {
	transport  *transport.Client
	propertyID int64
	jobPoll    *rate.Limiter
}

// New creates an API client scoped to one property.
func New(t *transport.Client, propertyID int64) *Client {
	return &Client{
		transport:  t,
		propertyID: propertyID,
		jobPoll:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// PropertyID returns the property this client is scoped to.
func (c *Client) PropertyID() int64 {
	return c.propertyID
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.transport.Call(ctx, transport.Request{Method: http.MethodGet, Path: "/health"})
	if err != nil {
		return nil, err
	}
	var status HealthStatus
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListDocuments fetches the document collection for the property.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/documents",
		Query:  c.propertyQuery(),
	})
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := resp.Decode(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CorpusStatus fetches GET /documents/status.
func (c *Client) CorpusStatus(ctx context.Context) (*CorpusStatus, error) {
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/documents/status",
		Query:  c.propertyQuery(),
	})
	if err != nil {
		return nil, err
	}
	var status CorpusStatus
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// UploadDocument streams one file as a multipart POST, reporting
// byte-level progress against the declared size.
func (c *Client) UploadDocument(ctx context.Context, filename string, size int64, file io.Reader, progress ProgressFunc) (*UploadResult, error) {
	var counted io.Reader = file
	if progress != nil {
		counted = &progressReader{reader: file, total: size, report: progress}
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		if err := writer.WriteField("property_id", strconv.FormatInt(c.propertyID, 10)); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, counted); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	resp, err := c.transport.Call(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        "/documents/upload",
		Body:        pr,
		ContentType: writer.FormDataContentType(),
		Timeout:     transport.UploadTimeout,
	})
	if err != nil {
		return nil, err
	}
	var result UploadResult
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	if progress != nil && size > 0 {
		progress(size, size)
	}
	return &result, nil
}

// UploadJob fetches one server-side ingestion job.
func (c *Client) UploadJob(ctx context.Context, jobID int64) (*UploadJob, error) {
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/documents/upload-jobs/" + strconv.FormatInt(jobID, 10),
	})
	if err != nil {
		return nil, err
	}
	var job UploadJob
	if err := resp.Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForUploadJob polls a job until it reaches a terminal state or the
// context is cancelled. Polling is paced by a rate limiter.
func (c *Client) WaitForUploadJob(ctx context.Context, jobID int64) (*UploadJob, error) {
	for {
		if err := c.jobPoll.Wait(ctx); err != nil {
			return nil, err
		}
		job, err := c.UploadJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
	}
}

// DeleteDocument removes a document from the corpus.
func (c *Client) DeleteDocument(ctx context.Context, documentID int64) error {
	_, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/documents/" + strconv.FormatInt(documentID, 10),
	})
	return err
}

// Chat posts a question against the indexed corpus.
func (c *Client) Chat(ctx context.Context, question string) (*ChatAnswer, error) {
	body, err := json.Marshal(map[string]any{
		"question":    question,
		"property_id": c.propertyID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/chat",
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return nil, err
	}
	var answer ChatAnswer
	if err := resp.Decode(&answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// ChatHistory fetches the server-persisted chat turns for the property.
func (c *Client) ChatHistory(ctx context.Context) ([]HistoryMessage, error) {
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/chat/history",
		Query:  c.propertyQuery(),
	})
	if err != nil {
		return nil, err
	}
	var history []HistoryMessage
	if err := resp.Decode(&history); err != nil {
		return nil, err
	}
	return history, nil
}

// ClearChatHistory deletes the server-persisted chat turns.
func (c *Client) ClearChatHistory(ctx context.Context) error {
	_, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/chat/history",
		Query:  c.propertyQuery(),
	})
	return err
}

// SourceSnippet fetches the text snippet behind one chat source.
func (c *Client) SourceSnippet(ctx context.Context, documentID, chunkID int64) (string, error) {
	query := url.Values{}
	query.Set("document_id", strconv.FormatInt(documentID, 10))
	query.Set("chunk_id", strconv.FormatInt(chunkID, 10))
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/documents/source",
		Query:  query,
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		Snippet string `json:"snippet"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	return payload.Snippet, nil
}

// ExtractTimeline extracts timeline items from pasted raw text.
func (c *Client) ExtractTimeline(ctx context.Context, rawText string) (*ExtractionResult, error) {
	body, err := json.Marshal(map[string]string{"raw_text": rawText})
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/timeline/extract",
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return nil, err
	}
	var result ExtractionResult
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExtractTimelineFromDocuments runs extraction across the indexed corpus.
// A nil documentIDs means all documents of the property.
func (c *Client) ExtractTimelineFromDocuments(ctx context.Context, documentIDs []int64) (*DocumentExtractionResult, error) {
	payload := map[string]any{"property_id": c.propertyID}
	if len(documentIDs) > 0 {
		payload["document_ids"] = documentIDs
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}
	resp, err := c.transport.Call(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/timeline/extract-documents",
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return nil, err
	}
	var result DocumentExtractionResult
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) propertyQuery() url.Values {
	query := url.Values{}
	query.Set("property_id", strconv.FormatInt(c.propertyID, 10))
	return query
}

// progressReader counts bytes as the multipart writer drains the file.
type progressReader struct {
	reader io.Reader
	loaded int64
	total  int64
	report ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.loaded += int64(n)
		r.report(r.loaded, r.total)
	}
	return n, err
}
