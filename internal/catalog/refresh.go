package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDocumentBytes bounds the remote catalog payload. A legitimate catalog
// is kilobytes; anything larger is wrong.
const maxDocumentBytes = 8 << 20

// FetchDocument downloads and decodes the published catalog.
func FetchDocument(ctx context.Context, client *http.Client, url string) (*Document, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %s", resp.Status)
	}

	var doc Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Images) == 0 {
		return nil, fmt.Errorf("decode catalog: no images in document")
	}
	return &doc, nil
}

// NeedsRefresh reports whether the cached catalog is older than maxAge. A
// never-refreshed cache always needs a refresh.
func (s *Store) NeedsRefresh(ctx context.Context, maxAge time.Duration) (bool, error) {
	last, err := s.LastRefreshed(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	return time.Since(last) > maxAge, nil
}

// Refresh downloads the published catalog and replaces the cached entries.
func (s *Store) Refresh(ctx context.Context, client *http.Client, url string) (*Document, error) {
	doc, err := FetchDocument(ctx, client, url)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceImages(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
