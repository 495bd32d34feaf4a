package model

import "time"

// Well-known folder display names, compared case-insensitively.
const (
	FolderInbox     = "inbox"
	FolderSentItems = "sent items"
)

// Folder is a mailbox folder as listed by the REST endpoint.
type Folder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ParentFolderID   string `json:"parentFolderId,omitempty"`
	ChildFolderCount int    `json:"childFolderCount"`
	UnreadItemCount  int    `json:"unreadItemCount"`
	TotalItemCount   int    `json:"totalItemCount"`
}

// MessageSummary is the subset of a message the monitor works with.
// Recipient lists keep the order of the source response.
type MessageSummary struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	From           string   `json:"from"`
	ToRecipients   []string `json:"toRecipients"`
	CcRecipients   []string `json:"ccRecipients"`
}

// Attachment is a file attached to exactly one message.
type Attachment struct {
	ID          string `json:"id"`
	MessageID   string `json:"messageId"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Content     []byte `json:"-"`
}

// JournalEntry records a message the poller consumed and marked read.
type JournalEntry struct {
	ID             string    `db:"id" json:"id"`
	MessageID      string    `db:"message_id" json:"message_id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Folder         string    `db:"folder" json:"folder"`
	Subject        string    `db:"subject" json:"subject"`
	Sender         string    `db:"sender" json:"sender"`
	ReadAt         time.Time `db:"read_at" json:"read_at"`
}
