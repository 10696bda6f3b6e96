package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nfse-reader/internal/entity"
)

// Headers set on every webhook POST besides Content-Type.
const (
	HeaderEvent    = "X-NFSe-Event"
	HeaderTask     = "X-NFSe-Task"
	HeaderDelivery = "X-NFSe-Delivery"
	userAgent      = "nfse-reader-webhook/1"
)

// deliver POSTs event to url and returns the subscriber's status code.
// Any non-2xx answer is an error. The response body is drained and dropped.
func (n *Notifier) deliver(ctx context.Context, url string, event entity.WebhookEvent) (int, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	delivery := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, event.Action)
	req.Header.Set(HeaderTask, strconv.FormatInt(event.TaskID, 10))
	req.Header.Set(HeaderDelivery, delivery)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	n.logger.Debug("notify.delivered",
		"delivery", delivery,
		"url", url,
		"action", event.Action,
		"task_id", event.TaskID,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("subscriber answered %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
