package slack

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

// Notifier posts plain text messages to an incoming webhook. A notifier
// without a webhook URL drops every message.
type Notifier struct {
	log        *logger.Logger
	webhookURL string
	http       *http.Client
}

func New(log *logger.Logger, webhookURL string) *Notifier {
	return &Notifier{
		log:        log.With("client", "Slack"),
		webhookURL: strings.TrimSpace(webhookURL),
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}
	return httpx.DoJSON(ctx, n.http, http.MethodPost, n.webhookURL, nil, map[string]string{"text": text}, nil)
}
