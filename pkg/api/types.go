package api

import "strconv"

// Document is a server-side record created on successful upload.
// document_id is unique within the in-memory document list.
type Document struct {
	DocumentID   int64    `json:"document_id"`
	PropertyID   int64    `json:"property_id"`
	Filename     string   `json:"filename"`
	UploadedAt   string   `json:"uploaded_at,omitempty"`
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// DocumentState is the processing state of an indexed document. It has a
// lifecycle independent from the Document record itself.
type DocumentState string

const (
	StateIndexed    DocumentState = "indexed"
	StateProcessing DocumentState = "processing"
	StateError      DocumentState = "error"
)

// CorpusStatus summarizes the indexed corpus.
type CorpusStatus struct {
	DocumentsInDB int `json:"documents_in_db"`
	ChunksInDB    int `json:"chunks_in_db"`
}

// HealthStatus is the connectivity probe response.
type HealthStatus struct {
	OK bool `json:"ok"`
}

// UploadResult is the server response to a single document upload.
type UploadResult struct {
	DocumentID    int64  `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// JobStatus is the state of a server-side upload job. The client polls
// jobs but never owns them.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job has reached a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// UploadJob is a server-observed batch ingestion job.
type UploadJob struct {
	JobID           int64     `json:"job_id"`
	PropertyID      int64     `json:"property_id"`
	Status          JobStatus `json:"status"`
	ProcessedCount  int       `json:"processed_count"`
	FailedCount     int       `json:"failed_count"`
	FailedFilenames []string  `json:"failed_filenames"`
	CreatedAt       string    `json:"created_at"`
	UpdatedAt       string    `json:"updated_at"`
}

// Source is a reference from an assistant answer into the corpus.
type Source struct {
	DocumentID int64    `json:"document_id"`
	ChunkID    int64    `json:"chunk_id"`
	Score      *float64 `json:"score,omitempty"`
	Page       *int     `json:"page,omitempty"`
	PropertyID *int64   `json:"property_id,omitempty"`
}

// Key identifies the source chunk for snippet lookups.
func (s Source) Key() string {
	return strconv.FormatInt(s.DocumentID, 10) + ":" + strconv.FormatInt(s.ChunkID, 10)
}

// ChatAnswer is the server response to a chat question.
type ChatAnswer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// HistoryMessage is a server-persisted chat turn.
type HistoryMessage struct {
	ID        int64    `json:"id"`
	Role      string   `json:"role"`
	Text      string   `json:"text"`
	Sources   []Source `json:"sources,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// TimelineItem is one extracted date/payment/deadline entry. Items are
// immutable; each extraction replaces the full set.
type TimelineItem struct {
	Title       string   `json:"title"`
	DateISO     string   `json:"date_iso"`
	Time24h     string   `json:"time_24h,omitempty"`
	Category    string   `json:"category"`
	AmountEUR   *float64 `json:"amount_eur,omitempty"`
	Description string   `json:"description"`
	SourceQuote string   `json:"source_quote,omitempty"`
	DocumentID  int64    `json:"document_id,omitempty"`
	Filename    string   `json:"filename,omitempty"`
}

// ExtractionResult is the response to a raw-text extraction.
type ExtractionResult struct {
	Items []TimelineItem `json:"items"`
}

// DocumentExtractionResult is the response to a corpus-wide extraction.
type DocumentExtractionResult struct {
	Items               []TimelineItem `json:"items"`
	DocumentsConsidered int            `json:"documents_considered"`
	DocumentsProcessed  int            `json:"documents_processed"`
	DocumentsFailed     []string       `json:"documents_failed"`
}
