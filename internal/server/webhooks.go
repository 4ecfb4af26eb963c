package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
	webhookAttempts        = 3
	webhookRetryDelay      = 500 * time.Millisecond
	webhookRate            = 10
)

type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	filters  []eventFilter
	client   *resty.Client
	limiter  *rate.Limiter
	log      *logrus.Logger
	interval time.Duration
	delay    time.Duration
	mu       sync.Mutex
	cursors  map[int]int64
}

func newWebhookDispatcher(e engine.Engine, log *logrus.Logger) *webhookDispatcher {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return nil
	}
	d := &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   resty.New().SetTimeout(defaultWebhookTimeout),
		limiter:  rate.NewLimiter(rate.Limit(webhookRate), webhookRate),
		log:      log,
		interval: defaultWebhookInterval,
		delay:    webhookRetryDelay,
		cursors:  make(map[int]int64),
	}
	for _, hook := range d.webhooks {
		d.filters = append(d.filters, newEventFilter(hook.Events))
	}
	return d
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

// dispatchWebhook delivers events after the hook's cursor in order. A
// transient failure that outlasts the retries stops the batch so the event is
// tried again on the next tick. A permanent rejection is logged and skipped.
func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	events, err := d.engine.Repo.EventsAfter(ctx, d.engine.DB, repo.EventFilters{}, cursor, defaultWebhookBatch)
	if err != nil {
		d.log.WithError(err).Warn("webhook: fetch events failed")
		return
	}
	for _, evt := range events {
		if !d.filters[idx].match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.deliver(ctx, hook, evt); err != nil {
			entry := d.log.WithError(err).WithFields(logrus.Fields{
				"url":      hook.URL,
				"event_id": evt.ID,
				"type":     evt.Type,
			})
			var pe permanentError
			if !errors.As(err, &pe) {
				entry.Warn("webhook: delivery failed")
				return
			}
			entry.Error("webhook: delivery rejected, skipping event")
		}
		d.setCursor(idx, evt.ID)
	}
}

func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx, d.engine.DB)
	if err != nil {
		d.log.WithError(err).Warn("webhook: init cursor failed")
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	ContractID *int64          `json:"contract_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

// permanentError is a delivery failure that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }

func (d *webhookDispatcher) deliver(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	body := webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		ContractID: evt.ContractID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	}
	deliveryID := uuid.NewString()
	return retry.Do(
		func() error { return d.post(ctx, hook, deliveryID, body) },
		retry.Context(ctx),
		retry.Attempts(webhookAttempts),
		retry.Delay(d.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var pe permanentError
			return !errors.As(err, &pe)
		}),
	)
}

func (d *webhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, deliveryID string, body webhookEvent) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	req := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Gigline-Event", body.Type).
		SetHeader("X-Gigline-Event-Id", fmt.Sprintf("%d", body.ID)).
		SetHeader("X-Gigline-Delivery", deliveryID).
		SetBody(body)
	if strings.TrimSpace(hook.Secret) != "" {
		req.SetHeader("X-Gigline-Secret", hook.Secret)
	}
	if hook.TimeoutSeconds > 0 {
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(hook.TimeoutSeconds)*time.Second)
		defer cancel()
		req.SetContext(timeoutCtx)
	}
	res, err := req.Post(hook.URL)
	if err != nil {
		return err
	}
	if res.IsSuccess() {
		return nil
	}
	statusErr := fmt.Errorf("status %d: %s", res.StatusCode(), strings.TrimSpace(truncate(res.String(), 512)))
	if res.StatusCode() >= 400 && res.StatusCode() < 500 && res.StatusCode() != 429 {
		return permanentError{err: statusErr}
	}
	return statusErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// eventFilter matches event types exactly or by a "prefix.*" pattern. An
// empty filter matches everything.
type eventFilter struct {
	exact    mapset.Set[string]
	prefixes []string
}

func newEventFilter(events []string) eventFilter {
	f := eventFilter{exact: mapset.NewSet[string]()}
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		switch {
		case key == "":
		case strings.HasSuffix(key, ".*"):
			f.prefixes = append(f.prefixes, strings.TrimSuffix(key, "*"))
		default:
			f.exact.Add(key)
		}
	}
	return f
}

func (f eventFilter) match(evtType string) bool {
	if f.exact.Cardinality() == 0 && len(f.prefixes) == 0 {
		return true
	}
	if f.exact.Contains(evtType) {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(evtType, p) {
			return true
		}
	}
	return false
}
