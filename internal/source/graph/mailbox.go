package graph

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/source"
)

// Page sizes requested from the API. Results beyond them are never
// fetched; there is no pagination.
const (
	folderPageSize  = 100
	sentPageSize    = 5
	inboxScanSize   = 100
	unreadPageSize  = 1
	unreadFilter    = "isRead eq false"
	mailFoldersPath = "/me/mailFolders"
	messagesPath    = "/me/messages"
)

// TokenProvider supplies a bearer token for each operation.
type TokenProvider interface {
	Acquire(ctx context.Context) (string, error)
}

// Mailbox implements source.Mailbox against the mailbox REST API.
type Mailbox struct {
	client *Client
	tokens TokenProvider
}

var _ source.Mailbox = (*Mailbox)(nil)

// NewMailbox creates a Mailbox that authenticates every operation with a
// token from tokens.
func NewMailbox(client *Client, tokens TokenProvider) *Mailbox {
	return &Mailbox{client: client, tokens: tokens}
}

// authorize acquires a fresh token for one operation.
func (m *Mailbox) authorize(ctx context.Context) (bearer, error) {
	token, err := m.tokens.Acquire(ctx)
	if err != nil {
		if source.IsAuthError(err) {
			return "", err
		}
		return "", &source.AuthError{Code: "token_unavailable", Err: err}
	}
	return bearer(token), nil
}

// GetMessageDetails fetches a message and reduces it to a summary.
func (m *Mailbox) GetMessageDetails(
	ctx context.Context,
	messageID string,
) (*model.MessageSummary, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}
	return m.messageDetails(ctx, auth, messageID)
}

// ReadSentMails returns the most recent sent messages keyed by message
// id. Any failure discards the whole result.
func (m *Mailbox) ReadSentMails(
	ctx context.Context,
) (map[string]model.MessageSummary, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}

	folders, err := m.listFolders(ctx, auth, mailFoldersPath)
	if err != nil {
		return nil, err
	}
	sent, err := findFolder(folders, model.FolderSentItems)
	if err != nil {
		return nil, err
	}

	messages, err := m.listMessages(ctx, auth, folderPath(sent.ID)+"/messages", sentPageSize, "")
	if err != nil {
		return nil, err
	}

	result := make(map[string]model.MessageSummary, len(messages))
	for _, msg := range messages {
		summary, err := m.messageDetails(ctx, auth, msg.ID)
		if err != nil {
			return nil, err
		}
		result[msg.ID] = *summary
	}
	return result, nil
}

// GetConversationThread scans the first page of inbox messages for the
// conversation and returns the details of the first match. It returns
// nil, nil when the conversation is not on that page.
func (m *Mailbox) GetConversationThread(
	ctx context.Context,
	conversationID string,
) (*model.MessageSummary, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}

	inbox, err := m.inbox(ctx, auth)
	if err != nil {
		return nil, err
	}

	messages, err := m.listMessages(ctx, auth, folderPath(inbox.ID)+"/messages", inboxScanSize, "")
	if err != nil {
		return nil, err
	}

	want := strings.TrimSpace(conversationID)
	for _, msg := range messages {
		if strings.TrimSpace(msg.ConversationID) == want {
			return m.messageDetails(ctx, auth, msg.ID)
		}
	}
	return nil, nil
}

// ReadFolderMails reads the first unread message of the inbox child
// folder named folderName and marks it read.
func (m *Mailbox) ReadFolderMails(
	ctx context.Context,
	folderName string,
) (*model.MessageSummary, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}

	inbox, err := m.inbox(ctx, auth)
	if err != nil {
		return nil, err
	}

	children, err := m.listFolders(ctx, auth, folderPath(inbox.ID)+"/childFolders")
	if err != nil {
		return nil, err
	}
	child, err := findFolder(children, folderName)
	if err != nil {
		return nil, err
	}

	base := folderPath(inbox.ID) + "/childFolders/" + url.PathEscape(child.ID) + "/messages"
	return m.readFirstUnread(ctx, auth, base, child.DisplayName)
}

// ReadInboxMails reads the first unread message directly under the inbox
// and marks it read.
func (m *Mailbox) ReadInboxMails(
	ctx context.Context,
) (*model.MessageSummary, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}

	inbox, err := m.inbox(ctx, auth)
	if err != nil {
		return nil, err
	}

	return m.readFirstUnread(ctx, auth, folderPath(inbox.ID)+"/messages", inbox.DisplayName)
}

// GetAttachmentInFile downloads the first attachment of a message and
// writes its bytes to path, replacing any existing file.
func (m *Mailbox) GetAttachmentInFile(
	ctx context.Context,
	messageID string,
	path string,
) error {
	auth, err := m.authorize(ctx)
	if err != nil {
		return err
	}

	attachment, err := m.firstAttachment(ctx, auth, messageID)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, attachment.Content, 0o644); err != nil {
		return &source.IOError{Path: path, Err: err}
	}
	return nil
}

// ListFolders returns the top-level mail folders.
func (m *Mailbox) ListFolders(ctx context.Context) ([]model.Folder, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}
	return m.listFolders(ctx, auth, mailFoldersPath)
}

// ListChildFolders returns the child folders of the inbox.
func (m *Mailbox) ListChildFolders(ctx context.Context) ([]model.Folder, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}
	inbox, err := m.inbox(ctx, auth)
	if err != nil {
		return nil, err
	}
	return m.listFolders(ctx, auth, folderPath(inbox.ID)+"/childFolders")
}

// ListAttachments returns attachment metadata for a message, without
// content.
func (m *Mailbox) ListAttachments(
	ctx context.Context,
	messageID string,
) ([]model.Attachment, error) {
	auth, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}

	page, err := m.attachmentPage(ctx, auth, messageID)
	if err != nil {
		return nil, err
	}

	attachments := make([]model.Attachment, 0, len(page.Value))
	for _, a := range page.Value {
		attachments = append(attachments, model.Attachment{
			ID:          a.ID,
			MessageID:   messageID,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return attachments, nil
}

func (m *Mailbox) readFirstUnread(
	ctx context.Context,
	auth bearer,
	messagesBase string,
	folderName string,
) (*model.MessageSummary, error) {
	unread, err := m.listMessages(ctx, auth, messagesBase, unreadPageSize, unreadFilter)
	if err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return nil, &source.NotFoundError{
			Resource: source.ResourceUnreadMessage,
			Name:     folderName,
		}
	}
	messageID := unread[0].ID

	summary, err := m.messageDetails(ctx, auth, messageID)
	if err != nil {
		return nil, err
	}

	patchPath := messagesBase + "/" + url.PathEscape(messageID)
	if err := m.client.patch(ctx, auth, patchPath, readFlagPatch{IsRead: true}, nil); err != nil {
		return nil, fmt.Errorf("marking message %s read: %w", messageID, err)
	}
	return summary, nil
}

func (m *Mailbox) messageDetails(
	ctx context.Context,
	auth bearer,
	messageID string,
) (*model.MessageSummary, error) {
	var msg Message
	err := m.client.get(ctx, auth, messagesPath+"/"+url.PathEscape(messageID), &msg)
	if err != nil {
		if source.IsNotFound(err) {
			return nil, &source.NotFoundError{Resource: source.ResourceMessage, Name: messageID}
		}
		return nil, fmt.Errorf("fetching message %s: %w", messageID, err)
	}
	return summarize(msg)
}

func (m *Mailbox) inbox(ctx context.Context, auth bearer) (model.Folder, error) {
	folders, err := m.listFolders(ctx, auth, mailFoldersPath)
	if err != nil {
		return model.Folder{}, err
	}
	return findFolder(folders, model.FolderInbox)
}

func (m *Mailbox) listFolders(
	ctx context.Context,
	auth bearer,
	path string,
) ([]model.Folder, error) {
	var page FolderPage
	if err := m.client.get(ctx, auth, path+odataQuery(folderPageSize, ""), &page); err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	if page.Value == nil {
		return nil, &source.DecodeError{What: "folder list", Err: errMissingValue}
	}

	folders := make([]model.Folder, 0, len(page.Value))
	for _, f := range page.Value {
		folders = append(folders, model.Folder{
			ID:               f.ID,
			DisplayName:      f.DisplayName,
			ParentFolderID:   f.ParentFolderID,
			ChildFolderCount: f.ChildFolderCount,
			UnreadItemCount:  f.UnreadItemCount,
			TotalItemCount:   f.TotalItemCount,
		})
	}
	return folders, nil
}

func (m *Mailbox) listMessages(
	ctx context.Context,
	auth bearer,
	path string,
	top int,
	filter string,
) ([]Message, error) {
	var page MessagePage
	if err := m.client.get(ctx, auth, path+odataQuery(top, filter), &page); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if page.Value == nil {
		return nil, &source.DecodeError{What: "message list", Err: errMissingValue}
	}
	return page.Value, nil
}

func (m *Mailbox) attachmentPage(
	ctx context.Context,
	auth bearer,
	messageID string,
) (*AttachmentPage, error) {
	var page AttachmentPage
	path := messagesPath + "/" + url.PathEscape(messageID) + "/attachments"
	if err := m.client.get(ctx, auth, path, &page); err != nil {
		if source.IsNotFound(err) {
			return nil, &source.NotFoundError{Resource: source.ResourceMessage, Name: messageID}
		}
		return nil, fmt.Errorf("listing attachments of %s: %w", messageID, err)
	}
	if page.Value == nil {
		return nil, &source.DecodeError{What: "attachment list", Err: errMissingValue}
	}
	return &page, nil
}

func (m *Mailbox) firstAttachment(
	ctx context.Context,
	auth bearer,
	messageID string,
) (*model.Attachment, error) {
	page, err := m.attachmentPage(ctx, auth, messageID)
	if err != nil {
		return nil, err
	}
	if len(page.Value) == 0 {
		return nil, &source.NotFoundError{Resource: source.ResourceAttachment, Name: messageID}
	}
	attachmentID := page.Value[0].ID

	var a Attachment
	path := messagesPath + "/" + url.PathEscape(messageID) + "/attachments/" + url.PathEscape(attachmentID)
	if err := m.client.get(ctx, auth, path, &a); err != nil {
		if source.IsNotFound(err) {
			return nil, &source.NotFoundError{Resource: source.ResourceAttachment, Name: attachmentID}
		}
		return nil, fmt.Errorf("fetching attachment %s: %w", attachmentID, err)
	}
	if a.ContentBytes == nil {
		return nil, &source.DecodeError{
			What: "attachment " + attachmentID,
			Err:  errors.New("response has no contentBytes"),
		}
	}

	content, err := decodeContent(*a.ContentBytes)
	if err != nil {
		return nil, &source.DecodeError{What: "attachment " + attachmentID, Err: err}
	}

	return &model.Attachment{
		ID:          a.ID,
		MessageID:   messageID,
		Name:        a.Name,
		ContentType: a.ContentType,
		Size:        a.Size,
		Content:     content,
	}, nil
}

var errMissingValue = errors.New("response has no value array")

// summarize reduces a message to a summary. Recipient order follows the
// response.
func summarize(msg Message) (*model.MessageSummary, error) {
	var missing []string
	if msg.ID == "" {
		missing = append(missing, "id")
	}
	if msg.ConversationID == "" {
		missing = append(missing, "conversationId")
	}
	if msg.From == nil {
		missing = append(missing, "from")
	}
	if msg.ToRecipients == nil {
		missing = append(missing, "toRecipients")
	}
	if msg.CcRecipients == nil {
		missing = append(missing, "ccRecipients")
	}
	if len(missing) > 0 {
		return nil, &source.DecodeError{
			What: "message " + msg.ID,
			Err:  fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")),
		}
	}

	return &model.MessageSummary{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Subject:        msg.Subject,
		Body:           msg.BodyPreview,
		From:           msg.From.EmailAddress.Address,
		ToRecipients:   addresses(msg.ToRecipients),
		CcRecipients:   addresses(msg.CcRecipients),
	}, nil
}

func addresses(recipients []Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, r.EmailAddress.Address)
	}
	return out
}

// findFolder returns the first folder whose display name equals name,
// ignoring case and surrounding whitespace.
func findFolder(folders []model.Folder, name string) (model.Folder, error) {
	want := strings.TrimSpace(name)
	for _, f := range folders {
		if strings.EqualFold(strings.TrimSpace(f.DisplayName), want) {
			return f, nil
		}
	}
	return model.Folder{}, &source.NotFoundError{Resource: source.ResourceFolder, Name: name}
}

func folderPath(folderID string) string {
	return mailFoldersPath + "/" + url.PathEscape(folderID)
}

// odataQuery renders the $top and $filter query parameters.
func odataQuery(top int, filter string) string {
	q := "?$top=" + strconv.Itoa(top)
	if filter != "" {
		q += "&$filter=" + url.PathEscape(filter)
	}
	return q
}

// decodeContent decodes standard base64, ignoring embedded line breaks
// and spaces.
func decodeContent(encoded string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', ' ':
			return -1
		}
		return r
	}, encoded)
	return base64.StdEncoding.DecodeString(cleaned)
}
