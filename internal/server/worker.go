package server

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gigline/internal/engine"
)

const defaultSettlementInterval = 2 * time.Second

// StartBackground runs the settlement worker and, when webhooks are
// configured, the webhook dispatcher until ctx is cancelled. The returned
// function blocks until both have stopped.
func StartBackground(ctx context.Context, e engine.Engine, log *logrus.Logger) (wait func()) {
	var wg sync.WaitGroup
	w := newSettlementWorker(e, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.run(ctx)
	}()
	if d := newWebhookDispatcher(e, log); d != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.run(ctx)
		}()
	}
	return wg.Wait
}

type settlementWorker struct {
	engine   engine.Engine
	interval time.Duration
	batch    int
	log      *logrus.Logger
}

func newSettlementWorker(e engine.Engine, log *logrus.Logger) settlementWorker {
	w := settlementWorker{engine: e, interval: defaultSettlementInterval, batch: 50, log: log}
	if e.Config != nil {
		if e.Config.Settlement.Interval > 0 {
			w.interval = e.Config.Settlement.Interval
		}
		if e.Config.Settlement.Batch > 0 {
			w.batch = e.Config.Settlement.Batch
		}
	}
	return w
}

func (w settlementWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w settlementWorker) tick(ctx context.Context) {
	n, err := w.engine.SettlePending(ctx, w.batch)
	if err != nil && ctx.Err() == nil {
		w.log.WithError(err).Error("settlement: run failed")
		return
	}
	if n > 0 {
		w.log.WithField("settled", n).Info("settlement: released payments")
	}
}
