package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Document locations under the knowledge origin
const (
	SystemPromptPath  = "/prompts/system-prompt.txt"
	KnowledgeBasePath = "/data/knowledge-base.json"
)

// maxDocumentBytes bounds a single static document
const maxDocumentBytes = 8 << 20

// ErrNoOrigin is returned when no knowledge origin is configured
var ErrNoOrigin = errors.New("knowledge origin not configured")

// Fetcher retrieves the static documents
type Fetcher interface {
	FetchSystemPrompt(ctx context.Context) (string, error)
	FetchKnowledgeBase(ctx context.Context) (*Document, error)
}

// HTTPFetcher fetches the documents from a static asset origin
type HTTPFetcher struct {
	Origin     string
	HTTPClient *http.Client
}

// NewHTTPFetcher creates a fetcher for origin (e.g. https://example.twil.io)
func NewHTTPFetcher(origin string) *HTTPFetcher {
	return &HTTPFetcher{
		Origin: origin,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchSystemPrompt returns the prompt text
func (f *HTTPFetcher) FetchSystemPrompt(ctx context.Context) (string, error) {
	body, err := f.get(ctx, SystemPromptPath)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchKnowledgeBase returns the parsed knowledge base
func (f *HTTPFetcher) FetchKnowledgeBase(ctx context.Context) (*Document, error) {
	body, err := f.get(ctx, KnowledgeBasePath)
	if err != nil {
		return nil, err
	}
	return ParseDocument(body)
}

func (f *HTTPFetcher) get(ctx context.Context, path string) ([]byte, error) {
	if f.Origin == "" {
		return nil, ErrNoOrigin
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Origin+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return body, nil
}
