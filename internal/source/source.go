package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailbox-monitor/internal/model"
)

// AuthError indicates that a bearer token could not be obtained, or that
// the mailbox endpoint rejected the one presented. Code, Description and
// CorrelationID mirror the identity provider's error payload.
type AuthError struct {
	Code          string
	Description   string
	CorrelationID string
	Err           error
}

func (e *AuthError) Error() string {
	msg := "auth error"
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	switch {
	case e.Description != "":
		msg += ": " + e.Description
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if e.CorrelationID != "" {
		msg += " [correlation_id=" + e.CorrelationID + "]"
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Resource names used by NotFoundError.
const (
	ResourceFolder        = "folder"
	ResourceMessage       = "message"
	ResourceUnreadMessage = "unread message"
	ResourceAttachment    = "attachment"
)

// NotFoundError reports that an expected folder, message or attachment was
// absent from a response.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("no %s found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

// TransportError covers network faults and non-2xx responses other than
// 401 and 404. Code and Message carry the API's error body when present.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("executing request %s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf(
			"unexpected status %d on %s %s: %s: %s",
			e.StatusCode, e.Method, e.Path, e.Code, e.Message,
		)
	}
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Message,
	)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports malformed JSON, a response missing required fields,
// or an undecodable base64 payload.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IOError reports a failure writing attachment bytes to disk.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsNoUnread reports whether err means a folder had no unread message.
func IsNoUnread(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Resource == ResourceUnreadMessage
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func IsIO(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// Mailbox defines the operations a hosted mailbox exposes to the poller
// and the command line.
type Mailbox interface {
	// GetMessageDetails fetches a single message summary.
	GetMessageDetails(ctx context.Context, messageID string) (*model.MessageSummary, error)

	// ReadSentMails returns the most recent sent messages keyed by id.
	ReadSentMails(ctx context.Context) (map[string]model.MessageSummary, error)

	// GetConversationThread returns the first inbox message of the
	// conversation, or nil when none is in the fetched page.
	GetConversationThread(ctx context.Context, conversationID string) (*model.MessageSummary, error)

	// ReadFolderMails reads and marks read the first unread message of an
	// inbox child folder.
	ReadFolderMails(ctx context.Context, folderName string) (*model.MessageSummary, error)

	// ReadInboxMails reads and marks read the first unread inbox message.
	ReadInboxMails(ctx context.Context) (*model.MessageSummary, error)

	// GetAttachmentInFile writes the first attachment of a message to path.
	GetAttachmentInFile(ctx context.Context, messageID string, path string) error

	// ListFolders returns the top-level mail folders.
	ListFolders(ctx context.Context) ([]model.Folder, error)
}
