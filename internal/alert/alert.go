// Package alert implements the Notify/monitor outbound notification
// boundary (§6). The real chat transport target is out of scope; this
// package only decides what gets sent and gives callers a LoggingAlerter
// for tests and a WebhookAlerter for the one concrete transport this
// module is willing to own (a plain JSON POST), the same "decide, don't
// own the target" split the teacher draws around its connector interfaces
// in internal/interfaces/connector.go.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
)

// Notification is the structured payload Notify and the monitor nodes
// build and hand to an Alerter.
type Notification struct {
	Title           string             `json:"title"`
	Platform        model.Platform     `json:"platform"`
	JobID           string             `json:"job_id"`
	MatchRate       float64            `json:"match_rate"`
	TotalCount      int                `json:"total_count"`
	CountByStatus   map[string]int     `json:"count_by_status"`
	FilePath        string             `json:"file_path,omitempty"`
	Severity        Severity           `json:"severity"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Severity is the emoji-bucketed urgency derived from a match rate.
type Severity string

const (
	SeverityPerfect  Severity = "perfect"
	SeverityGood     Severity = "good"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Emoji returns the glyph LoggingAlerter prefixes a notification's title
// with.
func (s Severity) Emoji() string {
	switch s {
	case SeverityPerfect:
		return "✅"
	case SeverityGood:
		return "🙂"
	case SeverityWarn:
		return "⚠️"
	default:
		return "🚨"
	}
}

// ClassifySeverity buckets a match rate in [0,1] into a Severity using the
// thresholds named in §4.6 Notify: perfect (100%), good (≥95%), warn
// (≥80%), critical otherwise.
func ClassifySeverity(matchRate float64) Severity {
	switch {
	case matchRate >= 1.0:
		return SeverityPerfect
	case matchRate >= 0.95:
		return SeverityGood
	case matchRate >= 0.80:
		return SeverityWarn
	default:
		return SeverityCritical
	}
}

// Alerter delivers a Notification. Implementations must never block the
// caller past their own context's deadline; transport failures are a
// caller concern (Notify treats them as best-effort), not an Alerter
// concern (the interface itself still returns an error).
type Alerter interface {
	Send(ctx context.Context, n Notification) error
}

// LoggingAlerter logs the notification instead of delivering it anywhere,
// used by tests and the example CLI.
type LoggingAlerter struct {
	Logger arbor.ILogger
}

func (a *LoggingAlerter) Send(_ context.Context, n Notification) error {
	a.Logger.Info().
		Str("platform", string(n.Platform)).
		Str("job_id", n.JobID).
		Str("severity", string(n.Severity)).
		Msg(fmt.Sprintf("%s %s", n.Severity.Emoji(), n.Title))
	return nil
}

// webhookResponse is the minimal shape WebhookAlerter requires from the
// remote endpoint to consider a POST successful.
type webhookResponse struct {
	OK bool `json:"ok"`
}

// WebhookAlerter POSTs a Notification as JSON to a fixed URL. The target
// itself is external configuration (§1); this struct owns only the HTTP
// exchange and the ok=true/2xx success check (§6).
type WebhookAlerter struct {
	URL    string
	Client *http.Client
}

// NewWebhookAlerter builds a WebhookAlerter with a sane default client
// timeout when none is supplied.
func NewWebhookAlerter(url string, client *http.Client) *WebhookAlerter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookAlerter{URL: url, Client: client}
}

func (a *WebhookAlerter) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var parsed webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode webhook response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("webhook responded ok=false")
	}
	return nil
}
