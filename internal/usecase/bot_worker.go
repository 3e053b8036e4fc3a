package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BotWorker triggers orchestration cycles on a fixed interval. All ticks run
// on one goroutine, so cycles never overlap; ticker fires that land while a
// tick is still running are dropped.
type BotWorker struct {
	service  *BotService
	interval time.Duration
	logger   *zap.Logger
}

func NewBotWorker(service *BotService, interval time.Duration, logger *zap.Logger) *BotWorker {
	return &BotWorker{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the tick loop. The first tick runs immediately.
func (w *BotWorker) Start(ctx context.Context) {
	w.logger.Info("starting bot worker", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *BotWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("bot worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick swallows failures: one bad cycle must never prevent the next
// scheduled one.
func (w *BotWorker) tick(ctx context.Context) {
	if err := w.service.Tick(ctx); err != nil {
		w.logger.Error("tick failed", zap.Error(err))
	}
}
