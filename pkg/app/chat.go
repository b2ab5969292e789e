package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/immodoc/immodoc/pkg/errors"
	"github.com/immodoc/immodoc/pkg/logging"
	"github.com/immodoc/immodoc/pkg/session"
	"github.com/immodoc/immodoc/pkg/transport"
)

// ChatMessages returns a snapshot of the chat history.
func (a *App) ChatMessages() []session.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]session.ChatMessage, len(a.chat))
	copy(out, a.chat)
	return out
}

// Ask sends a question and appends both the user turn and the assistant
// answer to the history. The user turn stays in the history even when
// the request fails, so a retry has context.
func (a *App) Ask(ctx context.Context, question string) (*session.ChatMessage, error) {
	if err := a.begin(AreaChat); err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		err := apperrors.New(apperrors.ErrCodeInvalidInput, "empty question").
			WithUserMessage("Please enter a question.")
		a.finish(AreaChat, StateError, err.UserMessage)
		a.notifyWarning("Empty question", err.UserMessage)
		return nil, err
	}

	userMsg := session.ChatMessage{
		ID:   uuid.NewString(),
		Role: "user",
		Text: question,
	}
	a.mu.Lock()
	a.chat = append(a.chat, userMsg)
	a.mu.Unlock()

	answer, err := a.api.Chat(ctx, question)
	if err != nil {
		msg := transport.UserMessage(err)
		a.finish(AreaChat, StateError, msg)
		a.logError(logging.CategoryChat, "ask_failed", err)
		a.notifyError("Question failed", msg)
		a.persistChat()
		return nil, err
	}

	assistantMsg := session.ChatMessage{
		ID:      uuid.NewString(),
		Role:    "assistant",
		Text:    answer.Answer,
		Sources: answer.Sources,
	}
	a.mu.Lock()
	a.chat = append(a.chat, assistantMsg)
	a.mu.Unlock()

	a.finish(AreaChat, StateSuccess, "")
	a.persistChat()
	return &assistantMsg, nil
}

// LoadSourceSnippet fetches the snippet behind one answer source and
// caches it on the owning message. Snippets are fetched at most once.
func (a *App) LoadSourceSnippet(ctx context.Context, messageID, sourceKey string) (string, error) {
	a.mu.Lock()
	var documentID, chunkID int64
	found := false
	if msg := a.findMessageLocked(messageID); msg != nil {
		if cached, ok := msg.SourceDetails[sourceKey]; ok {
			a.mu.Unlock()
			return cached, nil
		}
		for _, src := range msg.Sources {
			if src.Key() == sourceKey {
				documentID, chunkID = src.DocumentID, src.ChunkID
				found = true
				break
			}
		}
	}
	a.mu.Unlock()

	if !found {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "unknown source "+sourceKey)
	}

	snippet, err := a.api.SourceSnippet(ctx, documentID, chunkID)
	if err != nil {
		a.logError(logging.CategoryChat, "snippet_failed", err)
		a.notifyError("Source unavailable", transport.UserMessage(err))
		return "", err
	}

	// The history may have been cleared or replaced while the fetch was
	// in flight; re-resolve by id and only cache when the message still
	// exists. The snippet itself is still valid for the caller.
	a.mu.Lock()
	msg := a.findMessageLocked(messageID)
	if msg != nil {
		if msg.SourceDetails == nil {
			msg.SourceDetails = make(map[string]string)
		}
		msg.SourceDetails[sourceKey] = snippet
	}
	a.mu.Unlock()

	if msg != nil {
		a.persistChat()
	}
	return snippet, nil
}

// findMessageLocked returns a pointer into the live history slice, valid
// only while the caller holds the mutex.
func (a *App) findMessageLocked(id string) *session.ChatMessage {
	for i := range a.chat {
		if a.chat[i].ID == id {
			return &a.chat[i]
		}
	}
	return nil
}

// ClearChat wipes the local history and asks the server to drop its copy.
// A failing server call does not restore the local history.
func (a *App) ClearChat(ctx context.Context) error {
	a.mu.Lock()
	a.chat = nil
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.ClearChatHistory(); err != nil {
			a.logError(logging.CategorySession, "history_clear_failed", err)
		}
	}

	if err := a.api.ClearChatHistory(ctx); err != nil {
		a.logError(logging.CategoryChat, "server_clear_failed", err)
		a.notifyWarning("Chat cleared locally", "The server copy could not be removed.")
		return err
	}
	a.notifySuccess("Chat cleared", "")
	return nil
}

// persistChat writes the history after the in-memory state is already
// updated, so a storage failure never blocks or reverts the conversation.
func (a *App) persistChat() {
	if a.store == nil {
		return
	}
	if err := a.store.SaveChatHistory(a.ChatMessages()); err != nil {
		a.logError(logging.CategorySession, "history_save_failed", err)
	}
}
