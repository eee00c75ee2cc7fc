package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
)

const defaultSlackTimeout = 10 * time.Second

// SlackNotifier posts run events to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

// SlackOption customizes a SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithChannel overrides the webhook's default channel.
func WithChannel(channel string) SlackOption {
	return func(s *SlackNotifier) { s.channel = channel }
}

// WithUsername sets the display name used for messages.
func WithUsername(username string) SlackOption {
	return func(s *SlackNotifier) { s.username = username }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) SlackOption {
	return func(s *SlackNotifier) { s.client = client }
}

// NewSlack creates a Slack webhook notifier.
func NewSlack(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultSlackTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// slackMessage is the incoming-webhook payload.
type slackMessage struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

// NotifyStart implements Notifier.
func (s *SlackNotifier) NotifyStart(ctx context.Context, run *domain.RunResult) error {
	text := fmt.Sprintf(":arrow_forward: Crawl started for *%s* (run `%s`)", run.SourceName, run.RunID)
	return s.post(ctx, text)
}

// NotifyComplete implements Notifier.
func (s *SlackNotifier) NotifyComplete(ctx context.Context, run *domain.RunResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Crawl %s for *%s* (run `%s`)\n",
		statusEmoji(run.Status), run.Status, run.SourceName, run.RunID)
	fmt.Fprintf(&sb, "> merchants: %d (%d new, %d updated)\n",
		run.TotalMerchants, run.NewMerchants, run.UpdatedCount)
	fmt.Fprintf(&sb, "> geocoded: %d (%d errors)\n", run.GeocodedCount, run.GeocodeErrors)
	fmt.Fprintf(&sb, "> duration: %.1fs", run.DurationSeconds)
	if len(run.Errors) > 0 {
		fmt.Fprintf(&sb, "\n> errors: %s", strings.Join(run.Errors, "; "))
	}
	return s.post(ctx, sb.String())
}

// NotifyError implements Notifier.
func (s *SlackNotifier) NotifyError(ctx context.Context, run *domain.RunResult, err error) error {
	text := fmt.Sprintf(":x: Crawl failed for *%s* (run `%s`): %v", run.SourceName, run.RunID, err)
	return s.post(ctx, text)
}

func (s *SlackNotifier) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(slackMessage{
		Channel:  s.channel,
		Username: s.username,
		Text:     text,
	})
	if err != nil {
		return fmt.Errorf("slack notifier marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack notifier new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := s.client.Do(req)
	if doErr != nil {
		return fmt.Errorf("slack notifier do request: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func statusEmoji(status domain.RunStatus) string {
	switch status {
	case domain.RunStatusSuccess:
		return ":white_check_mark:"
	case domain.RunStatusPartial:
		return ":warning:"
	case domain.RunStatusFailed:
		return ":x:"
	default:
		return ":grey_question:"
	}
}
