package notifier

import (
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
)

// SlackNotifier posts events to a Slack incoming webhook. Posting happens in
// the background so Notify never blocks the caller.
type SlackNotifier struct {
	webhookURL string
	logger     *slog.Logger
	post       func(url string, msg *slack.WebhookMessage) error
	wg         sync.WaitGroup
}

var _ Notifier = &SlackNotifier{}

func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		logger:     logger,
		post:       slack.PostWebhook,
	}
}

func (s *SlackNotifier) Notify(e Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		msg := slack.WebhookMessage{Attachments: []slack.Attachment{{
			Color: colorFor(e.Kind),
			Title: e.String(),
			Text:  e.Reason,
		}}}
		if err := s.post(s.webhookURL, &msg); err != nil {
			s.logger.Error("failed to post to slack", "err", err)
		}
	}()
}

// Wait blocks until all in-flight posts are done. Used on shutdown.
func (s *SlackNotifier) Wait() {
	s.wg.Wait()
}

func colorFor(kind Kind) string {
	if kind == Error {
		return "danger"
	}
	return "good"
}
