package graph

// ErrorResponse is the error body returned by the mailbox API.
type ErrorResponse struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError struct {
			RequestID       string `json:"request-id"`
			ClientRequestID string `json:"client-request-id"`
		} `json:"innerError"`
	} `json:"error"`
}

// FolderPage is the response from GET /me/mailFolders and
// GET /me/mailFolders/{id}/childFolders.
type FolderPage struct {
	Value    []MailFolder `json:"value"`
	NextLink string       `json:"@odata.nextLink,omitempty"`
}

// MailFolder is a single mail folder.
type MailFolder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ParentFolderID   string `json:"parentFolderId"`
	ChildFolderCount int    `json:"childFolderCount"`
	UnreadItemCount  int    `json:"unreadItemCount"`
	TotalItemCount   int    `json:"totalItemCount"`
}

// MessagePage is the response from GET .../messages.
type MessagePage struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink,omitempty"`
}

// Message is a mail message. Listing endpoints return the same shape.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Subject        string      `json:"subject"`
	BodyPreview    string      `json:"bodyPreview"`
	IsRead         bool        `json:"isRead"`
	From           *Recipient  `json:"from"`
	ToRecipients   []Recipient `json:"toRecipients"`
	CcRecipients   []Recipient `json:"ccRecipients"`
}

// Recipient wraps an email address.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress is a display name and address pair.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// AttachmentPage is the response from GET /me/messages/{id}/attachments.
type AttachmentPage struct {
	Value []Attachment `json:"value"`
}

// Attachment is a message attachment. ContentBytes is only set for file
// attachments.
type Attachment struct {
	ODataType    string  `json:"@odata.type"`
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ContentType  string  `json:"contentType"`
	Size         int     `json:"size"`
	ContentBytes *string `json:"contentBytes"`
}

// readFlagPatch is the body of the mark-as-read PATCH.
type readFlagPatch struct {
	IsRead bool `json:"isRead"`
}
