package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
	"post-purge/internal/scheduler"
)

// Options задает ограничения сервиса удаления
type Options struct {
	MaxItemsPerRun int
	MaxListLimit   int
	FlushTimeout   time.Duration
}

// Purger управляет запусками удаления: один запуск за раз, прогресс доступен для опроса
type Purger struct {
	gateway   ports.PostGateway
	scheduler *scheduler.Scheduler
	tracker   *scheduler.Tracker
	sinks     []ports.OutcomeSink
	clock     ports.Clock
	opts      Options
	logger    *zap.Logger

	mu         sync.RWMutex
	running    bool
	closing    bool
	account    *entities.Account
	runID      string
	startedAt  *time.Time
	finishedAt *time.Time
	canceled   bool
	lastError  string
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewPurger создает сервис удаления постов
func NewPurger(
	gateway ports.PostGateway,
	sched *scheduler.Scheduler,
	sinks []ports.OutcomeSink,
	clock ports.Clock,
	opts Options,
	logger *zap.Logger,
) *Purger {
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 30 * time.Second
	}

	return &Purger{
		gateway:   gateway,
		scheduler: sched,
		tracker:   scheduler.NewTracker(),
		sinks:     sinks,
		clock:     clock,
		opts:      opts,
		logger:    logger,
	}
}

// Initialize проверяет учетные данные и запоминает владельца
func (p *Purger) Initialize(ctx context.Context) (*entities.Account, error) {
	account, err := p.gateway.IdentifyCurrentUser(ctx)
	if err != nil {
		if _, throttled := entities.IsThrottle(err); !throttled && !errors.Is(err, entities.ErrAuth) {
			err = fmt.Errorf("%w: %v", entities.ErrAuth, err)
		}
		p.logger.Error("Initialization failed", zap.Error(err))
		return nil, err
	}

	p.mu.Lock()
	p.account = account
	p.mu.Unlock()

	p.logger.Info("Initialized",
		zap.String("user_id", account.ID),
		zap.String("handle", account.Handle))

	return account, nil
}

// Account возвращает копию текущей учетной записи
func (p *Purger) Account() *entities.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.account == nil {
		return nil
	}
	account := *p.account
	return &account
}

// ListRecentPosts возвращает последние посты текущего пользователя
func (p *Purger) ListRecentPosts(ctx context.Context, limit int) ([]entities.Post, error) {
	account := p.Account()
	if account == nil {
		return nil, entities.ErrNotInitialized
	}

	if limit <= 0 || limit > p.opts.MaxListLimit {
		limit = p.opts.MaxListLimit
	}

	return p.gateway.ListRecentPosts(ctx, account.ID, limit)
}

// StartRun запускает удаление в фоне и сразу возвращает идентификатор запуска.
// Запуск не зависит от отмены ctx, остановить его можно через CancelRun.
func (p *Purger) StartRun(ctx context.Context, ids []string) (string, error) {
	items, err := p.validate(ids)
	if err != nil {
		return "", err
	}

	runCtx, runID, err := p.acquire(context.WithoutCancel(ctx), len(items))
	if err != nil {
		return "", err
	}

	go func() {
		if _, err := p.execute(runCtx, runID, items); err != nil {
			p.logger.Error("Deletion run finished with errors",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}()

	return runID, nil
}

// RunSync выполняет удаление в текущей горутине и возвращает отчет
func (p *Purger) RunSync(ctx context.Context, ids []string) (*entities.RunReport, error) {
	items, err := p.validate(ids)
	if err != nil {
		return nil, err
	}

	runCtx, runID, err := p.acquire(ctx, len(items))
	if err != nil {
		return nil, err
	}
	return p.execute(runCtx, runID, items)
}

// CancelRun запрашивает кооперативную отмену активного запуска
func (p *Purger) CancelRun() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return entities.ErrNoActiveRun
	}

	p.logger.Info("Cancel requested", zap.String("run_id", p.runID))
	p.cancel()

	return nil
}

// Wait ждет завершения активного запуска, включая запись журнала
func (p *Purger) Wait(ctx context.Context) error {
	p.mu.RLock()
	done := p.done
	p.mu.RUnlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown запрещает новые запуски, отменяет активный и ждет записи его журнала
func (p *Purger) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closing = true
	if p.running {
		p.logger.Info("Canceling active run for shutdown", zap.String("run_id", p.runID))
		p.cancel()
	}
	p.mu.Unlock()

	return p.Wait(ctx)
}

// QueryStatus возвращает состояние сервиса и прогресс последнего запуска
func (p *Purger) QueryStatus() entities.RunStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := p.tracker.Snapshot()
	status := entities.RunStatus{
		Initialized: p.account != nil,
		Running:     p.running,
		RunID:       p.runID,
		Snapshot:    snapshot,
		Percent:     snapshot.Percent(),
		StartedAt:   p.startedAt,
		FinishedAt:  p.finishedAt,
		Canceled:    p.canceled,
		LastError:   p.lastError,
	}
	if p.account != nil {
		account := *p.account
		status.Account = &account
	}

	return status
}

// QueryProgressPercent возвращает процент выполнения
func (p *Purger) QueryProgressPercent() int {
	return p.tracker.Percent()
}

// validate проверяет запрос, не меняя состояние сервиса
func (p *Purger) validate(ids []string) ([]entities.WorkItem, error) {
	if p.Account() == nil {
		return nil, entities.ErrNotInitialized
	}

	items, err := entities.NormalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	if len(items) > p.opts.MaxItemsPerRun {
		return nil, fmt.Errorf("%w: %d ids, limit is %d", entities.ErrTooManyItems, len(items), p.opts.MaxItemsPerRun)
	}

	return items, nil
}

// acquire занимает слот запуска и устанавливает отмену и канал завершения в одной критической секции
func (p *Purger) acquire(parent context.Context, total int) (context.Context, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return nil, "", entities.ErrShuttingDown
	}
	if p.running {
		return nil, "", entities.ErrAlreadyInProgress
	}

	ctx, cancel := context.WithCancel(parent)
	runID := uuid.New().String()
	started := p.clock.Now()

	p.tracker.Reset(total)
	p.running = true
	p.runID = runID
	p.startedAt = &started
	p.finishedAt = nil
	p.canceled = false
	p.lastError = ""
	p.cancel = cancel
	p.done = make(chan struct{})

	return ctx, runID, nil
}

func (p *Purger) execute(ctx context.Context, runID string, items []entities.WorkItem) (*entities.RunReport, error) {
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("Deletion run started", zap.Int("items", len(items)))

	outcomes, runErr := p.scheduler.Run(ctx, items, p.tracker)

	canceled := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if canceled {
		runErr = nil
	}

	account := p.Account()
	report := &entities.RunReport{
		RunID:      runID,
		Account:    *account,
		FinishedAt: p.clock.Now(),
		Canceled:   canceled,
		Snapshot:   p.tracker.Snapshot(),
		Outcomes:   outcomes,
	}

	p.mu.RLock()
	report.StartedAt = *p.startedAt
	p.mu.RUnlock()

	err := errors.Join(runErr, p.flush(report))

	p.mu.Lock()
	p.finishedAt = &report.FinishedAt
	p.canceled = canceled
	if err != nil {
		p.lastError = err.Error()
	}
	p.cancel()
	p.cancel = nil
	p.running = false
	close(p.done)
	p.mu.Unlock()

	log.Info("Deletion run finished",
		zap.Bool("canceled", canceled),
		zap.Int("deleted", report.Snapshot.Deleted),
		zap.Int("failed", report.Snapshot.Failed),
		zap.Int("total", report.Snapshot.Total),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report, err
}

// flush отдает отчет всем приемникам; сбой одного не мешает остальным
func (p *Purger) flush(report *entities.RunReport) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.FlushTimeout)
	defer cancel()

	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Flush(ctx, *report); err != nil {
			p.logger.Error("Failed to flush outcome log",
				zap.String("sink", sink.Name()),
				zap.String("run_id", report.RunID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
		}
	}

	return errors.Join(errs...)
}

var _ ports.PurgeUseCase = (*Purger)(nil)
