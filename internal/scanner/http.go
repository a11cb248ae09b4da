package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
)

// JSONDecoder turns one HTTP response body into a ScannedData, or reports
// the product as not found. Each API-driven platform supplies its own,
// since response shapes are entirely platform-specific.
type JSONDecoder interface {
	Decode(body []byte) (data *model.ScannedData, isNotFound bool, err error)
}

// HTTPScanner performs a plain GET/POST against a platform's API and hands
// the body to a JSONDecoder. Used for both ScanMethodHTTP and
// ScanMethodGraphQL — the only difference is how BuildRequest shapes the
// outbound request.
type HTTPScanner struct {
	Platform     model.Platform
	Client       *http.Client
	Transport    model.ScanMethod // http or graphql
	GraphQLQuery string            // only used when Transport == graphql
	Decoder      JSONDecoder
	Timeout      time.Duration
	Logger       arbor.ILogger
}

func (s *HTTPScanner) scanMethod() model.ScanMethod {
	if s.Transport == "" {
		return model.ScanMethodHTTP
	}
	return s.Transport
}

// Method implements Scanner.
func (s *HTTPScanner) Method() model.ScanMethod { return s.scanMethod() }

func (s *HTTPScanner) Scan(ctx context.Context, targetURL string, _ context.Context) (Outcome, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := s.buildRequest(reqCtx, targetURL)
	if err != nil {
		return Outcome{Source: s.scanMethod()}, fmt.Errorf("build request: %w", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{Source: s.scanMethod()}, model.ClassifyScanError(fmt.Errorf("request %s: %w", targetURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Outcome{Success: true, IsNotFound: true, Source: s.scanMethod()}, nil
	}
	if resp.StatusCode >= 400 {
		return Outcome{Source: s.scanMethod()}, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, model.ErrNetworkError)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Source: s.scanMethod()}, fmt.Errorf("read body: %w", err)
	}

	if LooksNotFound(string(body)) {
		return Outcome{Success: true, IsNotFound: true, Source: s.scanMethod()}, nil
	}

	data, isNotFound, err := s.Decoder.Decode(body)
	if err != nil {
		return Outcome{Source: s.scanMethod()}, fmt.Errorf("decode: %w: %v", model.ErrExtractionFailed, err)
	}
	if isNotFound {
		return Outcome{Success: true, IsNotFound: true, Source: s.scanMethod()}, nil
	}

	return Outcome{Success: true, Data: data, Source: s.scanMethod()}, nil
}

func (s *HTTPScanner) buildRequest(ctx context.Context, targetURL string) (*http.Request, error) {
	if s.scanMethod() != model.ScanMethodGraphQL {
		return http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	}

	payload, err := json.Marshal(map[string]string{"query": s.GraphQLQuery})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
