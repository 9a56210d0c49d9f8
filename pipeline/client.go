package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fwojciec/audit"
)

// Interface compliance check.
var _ audit.Pipeline = (*Client)(nil)

// Client implements [audit.Pipeline] against the audit service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     audit.TokenSource
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The client should not set an
// overall timeout: streams stay open for as long as the pipeline runs.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the source of the bearer credential.
func WithTokenSource(ts audit.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithToken sets a fixed bearer credential.
func WithToken(token string) Option {
	return WithTokenSource(audit.StaticToken(token))
}

// WithLogger sets the logger for request and record diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a [Client] for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		tokens:     audit.StaticToken(""),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream issues req and returns a [audit.Stream] over the response records.
// A missing credential fails with [audit.ErrUnauthenticated], a failed
// round trip with [audit.ErrTransport] and a non-2xx response with
// *[audit.StatusError].
func (c *Client) Stream(ctx context.Context, req audit.Request) (audit.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: token: %w", err)
	}
	if token == "" {
		return nil, fmt.Errorf("pipeline: token: %w", audit.ErrUnauthenticated)
	}

	body, err := json.Marshal(buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	c.logger.Debug("pipeline request", "url", httpReq.URL.String(), "session_id", req.SessionID, "bytes", len(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w: %w", audit.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body, c.logger), nil
}

func buildRequestBody(req audit.Request) apiRequest {
	scenario := req.Scenario
	if scenario == "" {
		scenario = audit.DefaultScenario
	}
	history := make([]apiHistory, 0, len(req.History))
	for _, h := range req.History {
		history = append(history, apiHistory{Role: string(h.Role), Content: h.Content})
	}
	return apiRequest{
		Message:        req.Message,
		Scenario:       scenario,
		SessionID:      req.SessionID,
		ReferenceFiles: convertDocuments(req.References, audit.DocumentReference),
		TargetFiles:    convertDocuments(req.Targets, audit.DocumentTarget),
		History:        history,
	}
}

// convertDocuments maps documents to their wire form. An unset type takes
// the type of the list the document was passed in.
func convertDocuments(docs []audit.Document, typ audit.DocumentType) []apiFile {
	files := make([]apiFile, 0, len(docs))
	for _, d := range docs {
		t := d.Type
		if t == "" {
			t = typ
		}
		files = append(files, apiFile{Name: d.Name, URI: d.URI, Type: string(t), Status: d.Status})
	}
	return files
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyKB<<10))
	if err != nil {
		return fmt.Errorf("pipeline: HTTP %d (failed to read body: %w): %w", resp.StatusCode, err, audit.ErrTransport)
	}
	return fmt.Errorf("pipeline: %w", &audit.StatusError{StatusCode: resp.StatusCode, Body: string(body)})
}
