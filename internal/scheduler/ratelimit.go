package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

// RateLimitHandler оборачивает удаление одного поста и переживает ограничения частоты
type RateLimitHandler struct {
	gateway ports.PostGateway
	policy  entities.RateLimitPolicy
	clock   ports.Clock
	logger  *zap.Logger
}

// NewRateLimitHandler создает обработчик ограничений частоты
func NewRateLimitHandler(gateway ports.PostGateway, policy entities.RateLimitPolicy, clock ports.Clock, logger *zap.Logger) *RateLimitHandler {
	return &RateLimitHandler{
		gateway: gateway,
		policy:  policy,
		clock:   clock,
		logger:  logger,
	}
}

// Attempt удаляет пост, повторяя попытку после каждого ограничения частоты.
// Ошибка возвращается только при отмене контекста; любая другая ошибка удаления
// превращается в результат Failed без повтора.
func (h *RateLimitHandler) Attempt(ctx context.Context, item entities.WorkItem) (entities.DeletionOutcome, error) {
	for throttled := 0; ; throttled++ {
		if err := ctx.Err(); err != nil {
			return entities.DeletionOutcome{}, err
		}

		err := h.gateway.DeleteByID(ctx, item.ID)
		if err == nil {
			return entities.Deleted(item.ID, h.clock.Now()), nil
		}

		if te, ok := entities.IsThrottle(err); ok {
			wait := h.WaitFor(te.Signal, h.clock.Now())
			fields := []zap.Field{
				zap.String("post_id", item.ID),
				zap.Int("throttled", throttled+1),
				zap.Duration("wait", wait),
			}
			if te.Signal.ResetEpochSeconds != nil {
				fields = append(fields, zap.Time("reset_at", time.Unix(*te.Signal.ResetEpochSeconds, 0)))
			}
			h.logger.Warn("Rate limited, waiting before retry", fields...)

			if err := h.clock.Sleep(ctx, wait); err != nil {
				return entities.DeletionOutcome{}, err
			}
			continue
		}

		// a call aborted by cancellation is not a failure of the post
		if ctx.Err() != nil {
			return entities.DeletionOutcome{}, ctx.Err()
		}

		h.logger.Error("Failed to delete post",
			zap.String("post_id", item.ID),
			zap.Error(err))

		return entities.Failed(item.ID, err.Error(), h.clock.Now()), nil
	}
}

// WaitFor вычисляет паузу перед повтором: целые минуты до сброса лимита плюс буфер,
// либо запасное ожидание, если время сброса неизвестно
func (h *RateLimitHandler) WaitFor(signal entities.RateLimitSignal, now time.Time) time.Duration {
	if signal.ResetEpochSeconds == nil {
		return h.policy.FallbackWait
	}

	seconds := *signal.ResetEpochSeconds - now.Unix()
	if seconds < 0 {
		seconds = 0
	}
	minutes := (seconds + 59) / 60

	return time.Duration(minutes)*time.Minute + h.policy.Buffer
}
