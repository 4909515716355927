// Package httpsource fetches evidence intake records from an upstream
// extractor over HTTP.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skillcred/internal/evidence/models"
	"skillcred/pkg/domain"
)

const maxPayloadBytes = 1 << 20

// Fetcher issues GET requests against a URL template in which
// "{subject_id}" is replaced by the escaped subject id.
type Fetcher struct {
	source   models.SourceID
	template string
	client   *http.Client
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

func New(source models.SourceID, template string, opts ...Option) (*Fetcher, error) {
	if _, ok := models.ParseSourceID(string(source)); !ok {
		return nil, fmt.Errorf("unknown evidence source %q", source)
	}
	if !strings.Contains(template, "{subject_id}") {
		return nil, fmt.Errorf("endpoint for %s must contain {subject_id}", source)
	}
	f := &Fetcher{
		source:   source,
		template: template,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Fetcher) Source() models.SourceID { return f.source }

func (f *Fetcher) Fetch(ctx context.Context, subjectID domain.SubjectID) ([]byte, error) {
	target := strings.ReplaceAll(f.template, "{subject_id}", url.PathEscape(string(subjectID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", f.source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return nil, fmt.Errorf("fetch %s: upstream status %d: %w", f.source, resp.StatusCode, models.ErrSourceUnavailable)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.source, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("fetch %s: payload exceeds %d bytes: %w", f.source, maxPayloadBytes, models.ErrMalformedEvidence)
	}
	return body, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}
