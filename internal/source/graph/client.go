package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailbox-monitor/internal/source"
)

// Client is a thin HTTP client for the mailbox REST API. It sends one
// request per call, with no retries, and classifies failures into the
// error kinds of package source.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a mailbox REST client. The baseURL is the API root
// (e.g., https://graph.microsoft.com/v1.0). A nil httpClient gets a
// client with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// bearer is the access token an operation presents on every request it
// issues. Headers are built from it per request and never stored.
type bearer string

func (b bearer) header(withBody bool) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+string(b))
	h.Set("Accept", "application/json")
	h.Set("client-request-id", uuid.NewString())
	if withBody {
		h.Set("Content-Type", "application/json")
	}
	return h
}

// get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) get(
	ctx context.Context,
	auth bearer,
	path string,
	result interface{},
) error {
	return c.do(ctx, auth, http.MethodGet, path, nil, result)
}

// patch performs an HTTP PATCH request with a JSON body.
func (c *Client) patch(
	ctx context.Context,
	auth bearer,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, auth, http.MethodPatch, path, body, result)
}

// do builds the request, sends it, and decodes the JSON response.
func (c *Client) do(
	ctx context.Context,
	auth bearer,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = auth.header(body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &source.TransportError{Method: method, Path: path, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &source.TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", readErr),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, path, resp, respBody)
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &source.DecodeError{
			What: fmt.Sprintf("response from %s %s", method, path),
			Err:  err,
		}
	}

	return nil
}

// statusError maps a non-2xx response to a typed error.
func statusError(method, path string, resp *http.Response, body []byte) error {
	var apiErr ErrorResponse
	hasAPIErr := json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != ""

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		authErr := &source.AuthError{
			Code:        resp.Status,
			Description: "the mailbox endpoint rejected the access token",
		}
		if hasAPIErr {
			authErr.Code = apiErr.Error.Code
			authErr.Description = apiErr.Error.Message
			authErr.CorrelationID = apiErr.Error.InnerError.RequestID
		}
		return authErr
	case http.StatusNotFound:
		return &source.NotFoundError{Resource: "resource", Name: path}
	}

	transportErr := &source.TransportError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	if hasAPIErr {
		transportErr.Code = apiErr.Error.Code
		transportErr.Message = apiErr.Error.Message
	}
	return transportErr
}
