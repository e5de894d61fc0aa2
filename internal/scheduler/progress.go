package scheduler

import (
	"sync/atomic"

	"post-purge/internal/models/entities"
)

// Tracker ведет счетчики удаленных и неудачных постов.
// Писатель один (горутина планировщика), читателей может быть сколько угодно:
// снимок заменяется целиком, поэтому читатель никогда не видит частичное обновление.
type Tracker struct {
	current atomic.Pointer[entities.ProgressSnapshot]
}

// NewTracker создает трекер с нулевым прогрессом
func NewTracker() *Tracker {
	t := &Tracker{}
	t.current.Store(&entities.ProgressSnapshot{})
	return t
}

// Reset начинает отсчет для нового запуска
func (t *Tracker) Reset(total int) {
	t.current.Store(&entities.ProgressSnapshot{Total: total})
}

// Record учитывает один терминальный результат.
// Возвращает false, если статус не терминальный или счетчик вышел бы за Total:
// сначала нужно вызвать Reset с числом элементов запуска.
func (t *Tracker) Record(outcome entities.DeletionOutcome) bool {
	next := *t.current.Load()

	switch outcome.Status {
	case entities.OutcomeDeleted:
		next.Deleted++
	case entities.OutcomeFailed:
		next.Failed++
	default:
		return false
	}

	if next.Done() > next.Total {
		return false
	}

	t.current.Store(&next)
	return true
}

// Snapshot возвращает копию текущего прогресса
func (t *Tracker) Snapshot() entities.ProgressSnapshot {
	return *t.current.Load()
}

// Percent возвращает процент выполнения
func (t *Tracker) Percent() int {
	return t.Snapshot().Percent()
}
