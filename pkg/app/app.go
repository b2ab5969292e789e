// Package app owns the client-side state machines and sequences all
// network operations. It is the only writer of the mutable collections
// (documents, chat history, timeline items, selection); transport and
// the upload pipeline are stateless per-call helpers.
package app

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/immodoc/immodoc/pkg/api"
	"github.com/immodoc/immodoc/pkg/logging"
	"github.com/immodoc/immodoc/pkg/session"
	"github.com/immodoc/immodoc/pkg/timeline"
	"github.com/immodoc/immodoc/pkg/toast"
	"github.com/immodoc/immodoc/pkg/transport"
	"github.com/immodoc/immodoc/pkg/upload"
)

// Area is one functional area with its own UI state machine. No area's
// state machine can be entered concurrently with itself; across areas
// there is no ordering guarantee and the last completion wins.
type Area string

const (
	AreaAPI      Area = "api"
	AreaUpload   Area = "upload"
	AreaChat     Area = "chat"
	AreaTimeline Area = "timeline"
)

// State is the per-area UI state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// ErrBusy is returned when an operation is triggered while the same area
// is still loading.
var ErrBusy = errors.New("operation already in flight for this area")

type areaStatus struct {
	state   State
	message string
}

// App is the orchestrator.
type App struct {
	mu sync.Mutex

	api      *api.Client
	pipeline *upload.Pipeline
	store    *session.Store
	toasts   *toast.Manager
	logger   *logging.Logger

	areas       map[Area]*areaStatus
	backendDown bool

	documents []api.Document
	docIndex  map[int64]api.Document
	statuses  map[int64]api.DocumentState

	selection []upload.File

	chat []session.ChatMessage

	items  []api.TimelineItem
	filter timeline.Filter

	refreshGroup singleflight.Group
}

// New creates an orchestrator. The store and logger may be nil in tests.
func New(apiClient *api.Client, store *session.Store, toasts *toast.Manager, logger *logging.Logger) *App {
	return &App{
		api:      apiClient,
		pipeline: upload.NewPipeline(apiClient),
		store:    store,
		toasts:   toasts,
		logger:   logger,
		areas: map[Area]*areaStatus{
			AreaAPI:      {state: StateIdle},
			AreaUpload:   {state: StateIdle},
			AreaChat:     {state: StateIdle},
			AreaTimeline: {state: StateIdle},
		},
		docIndex: make(map[int64]api.Document),
		statuses: make(map[int64]api.DocumentState),
	}
}

// Startup performs the one-time connectivity probe and document refresh.
// A failed probe flips the backend-unavailable banner; the refresh is
// best-effort and never flips area state on its own.
func (a *App) Startup(ctx context.Context) {
	if a.store != nil {
		a.mu.Lock()
		a.chat = a.store.ChatHistory()
		a.mu.Unlock()
	}
	if err := a.HealthCheck(ctx); err != nil {
		return
	}
	a.refreshDocumentsBestEffort(ctx)
}

// HealthCheck probes the backend. Success clears the backend banner;
// failure sets it until a later probe succeeds.
func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.begin(AreaAPI); err != nil {
		return err
	}

	status, err := a.api.Health(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil || !status.OK {
		a.backendDown = true
		if err == nil {
			err = errors.New("backend reported not ok")
		}
		a.finishLocked(AreaAPI, StateError, transport.UserMessage(err))
		a.logError(logging.CategoryNetwork, "health_check_failed", err)
		a.notifyError("Backend unavailable", transport.UserMessage(err))
		return err
	}

	a.backendDown = false
	a.finishLocked(AreaAPI, StateSuccess, "")
	return nil
}

// RefreshDocuments reloads the document collection. Concurrent refreshes
// collapse into one network call.
func (a *App) RefreshDocuments(ctx context.Context) error {
	result, err, _ := a.refreshGroup.Do("documents", func() (any, error) {
		return a.api.ListDocuments(ctx)
	})
	if err != nil {
		a.logError(logging.CategoryNetwork, "document_refresh_failed", err)
		return err
	}

	docs := result.([]api.Document)
	a.mu.Lock()
	a.documents = docs
	a.docIndex = timeline.DocumentIndex(docs)
	for _, doc := range docs {
		if _, known := a.statuses[doc.DocumentID]; !known {
			a.statuses[doc.DocumentID] = api.StateIndexed
		}
	}
	a.mu.Unlock()
	return nil
}

// refreshDocumentsBestEffort swallows failures: a stale document list is
// not an area error.
func (a *App) refreshDocumentsBestEffort(ctx context.Context) {
	_ = a.RefreshDocuments(ctx)
}

// DeleteDocument removes a document server-side and from the local
// collection.
func (a *App) DeleteDocument(ctx context.Context, documentID int64) error {
	if err := a.api.DeleteDocument(ctx, documentID); err != nil {
		a.logError(logging.CategoryNetwork, "document_delete_failed", err)
		a.notifyError("Delete failed", transport.UserMessage(err))
		return err
	}

	a.mu.Lock()
	kept := a.documents[:0]
	for _, doc := range a.documents {
		if doc.DocumentID != documentID {
			kept = append(kept, doc)
		}
	}
	a.documents = kept
	delete(a.statuses, documentID)
	a.docIndex = timeline.DocumentIndex(a.documents)
	a.mu.Unlock()

	a.notifySuccess("Document deleted", "")
	return nil
}

// Documents returns a snapshot of the document collection.
func (a *App) Documents() []api.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]api.Document, len(a.documents))
	copy(out, a.documents)
	return out
}

// DocumentStatus returns the processing state for a document, defaulting
// to indexed when unknown.
func (a *App) DocumentStatus(documentID int64) api.DocumentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state, ok := a.statuses[documentID]; ok {
		return state
	}
	return api.StateIndexed
}

// FilenameFor resolves a document id to its filename via the index.
func (a *App) FilenameFor(documentID int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.docIndex[documentID].Filename
}

// AreaState reports the state machine of one area.
func (a *App) AreaState(area Area) (State, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status, ok := a.areas[area]
	if !ok {
		return StateIdle, ""
	}
	return status.state, status.message
}

// BackendDown reports the persistent backend-unavailable banner.
func (a *App) BackendDown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backendDown
}

// begin moves an area to loading, refusing re-entry while loading.
func (a *App) begin(area Area) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := a.areas[area]
	if status.state == StateLoading {
		return ErrBusy
	}
	status.state = StateLoading
	status.message = ""
	return nil
}

func (a *App) finishLocked(area Area, state State, message string) {
	status := a.areas[area]
	status.state = state
	status.message = message
}

func (a *App) finish(area Area, state State, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finishLocked(area, state, message)
}

func (a *App) notifySuccess(title, details string) {
	if a.toasts != nil {
		a.toasts.Success(title, details)
	}
}

func (a *App) notifyWarning(title, details string) {
	if a.toasts != nil {
		a.toasts.Warning(title, details)
	}
}

func (a *App) notifyError(title, details string) {
	if a.toasts != nil {
		a.toasts.Error(title, details)
	}
}

func (a *App) logError(category logging.Category, eventType string, err error) {
	if a.logger != nil {
		a.logger.Error(category, eventType, err.Error(), nil)
	}
}

func (a *App) logInfo(category logging.Category, eventType, message string, details map[string]any) {
	if a.logger != nil {
		a.logger.Info(category, eventType, message, details)
	}
}
