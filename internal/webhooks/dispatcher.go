package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/zircote/subcog/internal/model"
)

// DeliveryResult is the outcome of one Dispatch call.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempts   int
	DurationMs int64
	Error      string
}

// Dispatcher matches incoming MemoryEvents against configured Endpoints and
// delivers signed payloads with retry, recording every attempt to an audit
// log (spec.md §4.14). It implements internal/capture.EventSink so a
// capture.Service can emit directly into it.
type Dispatcher struct {
	endpoints []Endpoint
	audit     AuditBackend
	client    *http.Client
	logger    *zap.Logger
	nowFunc   func() int64
}

// New constructs a Dispatcher. audit may be nil, in which case deliveries
// are attempted but not recorded (spec.md "degrade gracefully when the
// audit store is unavailable").
func New(endpoints []Endpoint, audit AuditBackend, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		endpoints: endpoints,
		audit:     audit,
		client:    &http.Client{},
		logger:    logger,
		nowFunc:   func() int64 { return time.Now().Unix() },
	}
}

// Emit implements internal/capture.EventSink: it fires-and-forgets delivery
// to every matching endpoint, logging (never returning) failures, since
// event emission must never block or fail the capture pipeline (spec.md
// §4.6 step 9).
func (d *Dispatcher) Emit(ctx context.Context, event model.MemoryEvent) {
	scope := string(event.Domain.Scope)
	for _, ep := range d.endpoints {
		if !ep.Matches(event, scope) {
			continue
		}
		result := d.deliver(ctx, ep, event)
		if !result.Success {
			d.logger.Warn("webhooks: delivery failed",
				zap.String("webhook", ep.Name), zap.String("event_type", string(event.Type)),
				zap.Int("attempts", result.Attempts), zap.String("error", result.Error))
		}
	}
}

// deliver sends the payload to ep with exponential-backoff retry, and
// records the outcome to the audit log.
func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, event model.MemoryEvent) DeliveryResult {
	payload := FromEvent(event)
	body := payload.Render(ep.Format)

	retry := ep.Retry
	if retry.MaxRetries <= 0 && retry.BaseDelayMs <= 0 {
		retry = DefaultRetryConfig()
	}

	start := time.Now()
	var lastErr error
	var lastStatus int
	attempts := 0

	for attempt := 1; attempt <= retry.MaxRetries+1; attempt++ {
		attempts = attempt
		if attempt > 1 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				goto done
			case <-time.After(retry.Delay(attempt - 1)):
			}
		}

		status, err := d.attempt(ctx, ep, body, retry.TimeoutSecs)
		lastStatus = status
		lastErr = err
		if err == nil && status >= 200 && status < 300 {
			break
		}
	}

done:
	duration := time.Since(start).Milliseconds()
	success := lastErr == nil && lastStatus >= 200 && lastStatus < 300

	status := StatusFailed
	if success {
		status = StatusSuccess
	} else if lastErr == context.DeadlineExceeded {
		status = StatusTimeout
	}

	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}

	record := DeliveryRecord{
		ID:          uuid.NewString(),
		WebhookName: ep.Name,
		EventType:   string(event.Type),
		EventID:     event.Meta.EventID,
		Domain:      event.Domain.String(),
		URL:         ep.URL,
		Status:      status,
		StatusCode:  lastStatus,
		Attempts:    attempts,
		DurationMs:  duration,
		Error:       errMsg,
		Timestamp:   d.nowFunc(),
	}
	if d.audit != nil {
		if err := d.audit.Store(ctx, record); err != nil {
			d.logger.Warn("webhooks: recording audit entry failed", zap.Error(err))
		}
	}

	return DeliveryResult{Success: success, StatusCode: lastStatus, Attempts: attempts, DurationMs: duration, Error: errMsg}
}

// attempt makes a single HTTP POST to ep.URL, applying its configured
// authentication (spec.md §4.14).
func (d *Dispatcher) attempt(ctx context.Context, ep Endpoint, body []byte, timeoutSecs int) (int, error) {
	if timeoutSecs <= 0 {
		timeoutSecs = DefaultRetryConfig().TimeoutSecs
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhooks: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if ep.Auth == AuthBearer || ep.Auth == AuthBoth {
		req.Header.Set("Authorization", "Bearer "+ep.Secret)
	}
	if ep.Auth == AuthHMAC || ep.Auth == AuthBoth {
		req.Header.Set("X-Subcog-Signature", Sign(ep.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhooks: request failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
