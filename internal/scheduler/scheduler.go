package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

// Scheduler последовательно удаляет посты пакетами с паузами
type Scheduler struct {
	cfg     entities.BatchConfig
	handler *RateLimitHandler
	clock   ports.Clock
	logger  *zap.Logger
	running atomic.Bool
}

// NewScheduler создает планировщик; конфигурация неизменна на все время его жизни
func NewScheduler(cfg entities.BatchConfig, handler *RateLimitHandler, clock ports.Clock, logger *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:     cfg,
		handler: handler,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Config возвращает конфигурацию пакетов
func (s *Scheduler) Config() entities.BatchConfig {
	return s.cfg
}

// Partition разбивает элементы на последовательные пакеты размера size;
// последний пакет может быть короче
func Partition(items []entities.WorkItem, size int) [][]entities.WorkItem {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	total := len(items) / size
	if len(items)%size > 0 {
		total++
	}

	batches := make([][]entities.WorkItem, 0, total)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}

	return batches
}

// Run обрабатывает элементы строго по порядку и возвращает упорядоченный журнал результатов.
// При отмене контекста возвращает результаты, собранные до отмены, вместе с ошибкой контекста.
func (s *Scheduler) Run(ctx context.Context, items []entities.WorkItem, tracker *Tracker) ([]entities.DeletionOutcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, entities.ErrAlreadyInProgress
	}
	defer s.running.Store(false)

	batches := Partition(items, s.cfg.ItemsPerBatch)
	outcomes := make([]entities.DeletionOutcome, 0, len(items))

	s.logger.Info("Starting deletion run",
		zap.Int("items", len(items)),
		zap.Int("batches", len(batches)),
		zap.Int("items_per_batch", s.cfg.ItemsPerBatch),
		zap.Duration("inter_batch_delay", s.cfg.InterBatchDelay))

	for bi, batch := range batches {
		for ii, item := range batch {
			outcome, err := s.handler.Attempt(ctx, item)
			if err != nil {
				return outcomes, fmt.Errorf("attempt %s: %w", item.ID, err)
			}

			outcomes = append(outcomes, outcome)
			if tracker != nil && !tracker.Record(outcome) {
				s.logger.Warn("Outcome not counted, tracker total exceeded",
					zap.String("post_id", outcome.ItemID),
					zap.String("status", string(outcome.Status)),
					zap.Int("total", tracker.Snapshot().Total))
			}

			if ii < len(batch)-1 && s.cfg.InterItemDelay > 0 {
				if err := s.clock.Sleep(ctx, s.cfg.InterItemDelay); err != nil {
					return outcomes, err
				}
			}
		}

		s.logger.Info("Batch processed",
			zap.Int("batch", bi+1),
			zap.Int("of", len(batches)),
			zap.Int("processed", len(outcomes)))

		if bi == len(batches)-1 {
			break
		}

		s.logger.Info("Pausing between batches", zap.Duration("delay", s.cfg.InterBatchDelay))
		if err := s.clock.Sleep(ctx, s.cfg.InterBatchDelay); err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}
