package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/entity"
	"github.com/joseph-ayodele/nfse-reader/internal/repository"
)

// Notifier delivers task lifecycle events to subscribed webhooks.
// Delivery is best effort: failures are logged and never returned.
type Notifier struct {
	hooks  repository.WebhookRepository
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewNotifier(hooks repository.WebhookRepository, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		hooks:  hooks,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notify POSTs {action, task_id, timestamp} to every webhook subscribed to
// action, one after another. It returns the number of successful deliveries.
func (n *Notifier) Notify(ctx context.Context, action constants.Action, taskID int64) int {
	hooks, err := n.hooks.ListForAction(ctx, action)
	if err != nil {
		n.logger.Error("notify.lookup_failed", "action", action, "task_id", taskID, "error", err)
		return 0
	}
	if len(hooks) == 0 {
		return 0
	}

	event := entity.WebhookEvent{Action: string(action), TaskID: taskID, Timestamp: n.now()}
	delivered := 0
	for i, h := range hooks {
		if ctx.Err() != nil {
			n.logger.Warn("notify.cancelled", "action", action, "task_id", taskID, "remaining", len(hooks)-i)
			break
		}
		if status, err := n.deliver(ctx, h.URL, event); err != nil {
			n.logger.Warn("notify.delivery_failed",
				"webhook_id", h.ID,
				"url", h.URL,
				"action", action,
				"task_id", taskID,
				"status", status,
				"error", err,
			)
			continue
		}
		delivered++
	}
	n.logger.Info("notify.done", "action", action, "task_id", taskID, "subscribers", len(hooks), "delivered", delivered)
	return delivered
}
