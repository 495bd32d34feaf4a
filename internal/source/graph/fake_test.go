package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	gosync "sync"
	"testing"
)

// fakeGraph is an in-memory mailbox API.
type fakeGraph struct {
	mu gosync.Mutex

	folders      []MailFolder
	children     map[string][]MailFolder // parent folder id -> child folders
	listings     map[string][]Message    // folder id -> messages in API order
	messages     map[string]Message      // message id -> full message
	attachments  map[string][]Attachment // message id -> attachments
	patches      map[string]readFlagPatch
	requests     []*http.Request
	statusByPath map[string]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		children:     make(map[string][]MailFolder),
		listings:     make(map[string][]Message),
		messages:     make(map[string]Message),
		attachments:  make(map[string][]Attachment),
		patches:      make(map[string]readFlagPatch),
		statusByPath: make(map[string]int),
	}
}

// addMessage stores msg under folderID and as a retrievable message.
func (f *fakeGraph) addMessage(folderID string, msg Message) {
	f.listings[folderID] = append(f.listings[folderID], msg)
	f.messages[msg.ID] = msg
}

func (f *fakeGraph) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /me/mailFolders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, FolderPage{Value: limit(f.folders, r)})
	})
	mux.HandleFunc("GET /me/mailFolders/{id}/childFolders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, FolderPage{Value: limit(f.childrenOf(r.PathValue("id")), r)})
	})
	mux.HandleFunc("GET /me/mailFolders/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, MessagePage{Value: f.listing(r.PathValue("id"), r)})
	})
	mux.HandleFunc("GET /me/mailFolders/{id}/childFolders/{child}/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, MessagePage{Value: f.listing(r.PathValue("child"), r)})
	})
	mux.HandleFunc("PATCH /me/mailFolders/{id}/messages/{msg}", f.patchMessage)
	mux.HandleFunc("PATCH /me/mailFolders/{id}/childFolders/{child}/messages/{msg}", f.patchMessage)
	mux.HandleFunc("GET /me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		msg, ok := f.messages[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "ErrorItemNotFound", "The specified object was not found in the store.")
			return
		}
		writeJSON(w, msg)
	})
	mux.HandleFunc("GET /me/messages/{id}/attachments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		list, ok := f.attachments[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			list = []Attachment{}
		}
		meta := make([]Attachment, 0, len(list))
		for _, a := range list {
			a.ContentBytes = nil
			meta = append(meta, a)
		}
		writeJSON(w, AttachmentPage{Value: meta})
	})
	mux.HandleFunc("GET /me/messages/{id}/attachments/{aid}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		list := f.attachments[r.PathValue("id")]
		f.mu.Unlock()
		for _, a := range list {
			if a.ID == r.PathValue("aid") {
				writeJSON(w, a)
				return
			}
		}
		writeError(w, http.StatusNotFound, "ErrorItemNotFound", "attachment not found")
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		status, forced := f.statusByPath[r.URL.Path]
		f.mu.Unlock()
		if forced {
			writeError(w, status, "ErrorForced", "forced failure")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeGraph) childrenOf(parentID string) []MailFolder {
	f.mu.Lock()
	defer f.mu.Unlock()
	children := f.children[parentID]
	if children == nil {
		return []MailFolder{}
	}
	return children
}

func (f *fakeGraph) listing(folderID string, r *http.Request) []Message {
	f.mu.Lock()
	all := make([]Message, 0, len(f.listings[folderID]))
	for _, msg := range f.listings[folderID] {
		if current, ok := f.messages[msg.ID]; ok {
			msg = current
		}
		all = append(all, msg)
	}
	f.mu.Unlock()

	out := []Message{}
	for _, msg := range all {
		if r.URL.Query().Get("$filter") == "isRead eq false" && msg.IsRead {
			continue
		}
		out = append(out, msg)
	}
	return limit(out, r)
}

func (f *fakeGraph) patchMessage(w http.ResponseWriter, r *http.Request) {
	var body readFlagPatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	f.mu.Lock()
	f.patches[r.URL.Path] = body
	if msg, ok := f.messages[r.PathValue("msg")]; ok {
		msg.IsRead = body.IsRead
		f.messages[msg.ID] = msg
	}
	f.mu.Unlock()
	writeJSON(w, map[string]any{"id": r.PathValue("msg"), "isRead": body.IsRead})
}

func (f *fakeGraph) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func limit[T any](items []T, r *http.Request) []T {
	top, err := strconv.Atoi(r.URL.Query().Get("$top"))
	if err != nil || top >= len(items) {
		return items
	}
	return items[:top]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

// staticTokens hands out a fixed token or error.
type staticTokens struct {
	token string
	err   error
	calls int
}

func (s *staticTokens) Acquire(context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

// newTestMailbox starts the fake server and returns a Mailbox bound to it.
func newTestMailbox(t *testing.T, fake *fakeGraph) (*Mailbox, *staticTokens) {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	tokens := &staticTokens{token: "test-token"}
	return NewMailbox(NewClient(srv.URL, srv.Client()), tokens), tokens
}

func recipients(addrs ...string) []Recipient {
	out := make([]Recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Recipient{EmailAddress: EmailAddress{Address: a}})
	}
	return out
}

func sampleMessage(id, conversationID string) Message {
	return Message{
		ID:             id,
		ConversationID: conversationID,
		Subject:        "subject " + id,
		BodyPreview:    "preview " + id,
		From:           &Recipient{EmailAddress: EmailAddress{Name: "Sender", Address: "sender@x.com"}},
		ToRecipients:   recipients("a@x.com"),
		CcRecipients:   recipients(),
	}
}

func strPtr(s string) *string { return &s }
