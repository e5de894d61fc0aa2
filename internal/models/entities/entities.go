package entities

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// WorkItem представляет один пост, назначенный на удаление
type WorkItem struct {
	ID string `json:"id"`
}

// Account представляет владельца учетных данных
type Account struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// PostMetrics содержит счетчики реакций на пост
type PostMetrics struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
}

// Post представляет пост пользователя, полученный от платформы
type Post struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	Metrics   PostMetrics `json:"metrics"`
}

// BatchConfig задает разбиение и паузы одного запуска
type BatchConfig struct {
	ItemsPerBatch   int
	InterBatchDelay time.Duration
	InterItemDelay  time.Duration
}

// DefaultBatchConfig возвращает консервативные значения по умолчанию
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ItemsPerBatch:   5,
		InterBatchDelay: 90 * time.Minute,
		InterItemDelay:  2 * time.Second,
	}
}

// Validate проверяет корректность конфигурации пакетов
func (c BatchConfig) Validate() error {
	if c.ItemsPerBatch <= 0 {
		return ErrInvalidBatchSize
	}
	if c.InterBatchDelay < 0 || c.InterItemDelay < 0 {
		return ErrInvalidDelay
	}
	return nil
}

// RateLimitPolicy задает ожидание при ограничении частоты запросов
type RateLimitPolicy struct {
	// Buffer добавляется к времени до сброса лимита
	Buffer time.Duration
	// FallbackWait используется, если платформа не сообщила время сброса
	FallbackWait time.Duration
}

// DefaultRateLimitPolicy возвращает политику по умолчанию
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		Buffer:       time.Minute,
		FallbackWait: 15 * time.Minute,
	}
}

// OutcomeStatus описывает итог попытки удаления
type OutcomeStatus string

const (
	OutcomeDeleted OutcomeStatus = "deleted"
	OutcomeFailed  OutcomeStatus = "failed"
)

// DeletionOutcome представляет терминальный результат для одного поста
type DeletionOutcome struct {
	ItemID    string        `json:"id"`
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Deleted создает успешный результат
func Deleted(id string, at time.Time) DeletionOutcome {
	return DeletionOutcome{ItemID: id, Status: OutcomeDeleted, Timestamp: at}
}

// Failed создает результат с ошибкой
func Failed(id, reason string, at time.Time) DeletionOutcome {
	return DeletionOutcome{ItemID: id, Status: OutcomeFailed, Reason: reason, Timestamp: at}
}

// ProgressSnapshot представляет согласованный срез прогресса запуска
type ProgressSnapshot struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// Done возвращает количество обработанных постов
func (s ProgressSnapshot) Done() int {
	return s.Deleted + s.Failed
}

// Percent возвращает процент выполнения от 0 до 100
func (s ProgressSnapshot) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.Done()) / float64(s.Total)))
}

// RunStatus описывает состояние сервиса для опроса клиентом
type RunStatus struct {
	Initialized bool             `json:"initialized"`
	Running     bool             `json:"running"`
	RunID       string           `json:"run_id,omitempty"`
	Account     *Account         `json:"account,omitempty"`
	Snapshot    ProgressSnapshot `json:"snapshot"`
	Percent     int              `json:"percent"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Canceled    bool             `json:"canceled"`
	LastError   string           `json:"last_error,omitempty"`
}

// RunReport передается приемникам журнала после завершения запуска
type RunReport struct {
	RunID      string            `json:"run_id"`
	Account    Account           `json:"account"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Canceled   bool              `json:"canceled"`
	Snapshot   ProgressSnapshot  `json:"snapshot"`
	Outcomes   []DeletionOutcome `json:"outcomes"`
}

// RateLimitSignal содержит время сброса лимита, если платформа его сообщила
type RateLimitSignal struct {
	ResetEpochSeconds *int64
}

// ThrottleError возвращается шлюзом, когда платформа ограничила частоту запросов
type ThrottleError struct {
	Signal  RateLimitSignal
	Message string
}

func (e *ThrottleError) Error() string {
	if e.Signal.ResetEpochSeconds != nil {
		return fmt.Sprintf("rate limited until %s: %s",
			time.Unix(*e.Signal.ResetEpochSeconds, 0).UTC().Format(time.RFC3339), e.Message)
	}
	return "rate limited: " + e.Message
}

// NewThrottleError создает ошибку ограничения частоты
func NewThrottleError(reset *int64, message string) *ThrottleError {
	return &ThrottleError{Signal: RateLimitSignal{ResetEpochSeconds: reset}, Message: message}
}

// IsThrottle сообщает, является ли ошибка сигналом ограничения частоты
func IsThrottle(err error) (*ThrottleError, bool) {
	var te *ThrottleError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// NormalizeIDs проверяет список идентификаторов и убирает повторы
func NormalizeIDs(ids []string) ([]WorkItem, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyInput
	}

	seen := make(map[string]struct{}, len(ids))
	items := make([]WorkItem, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, WorkItem{ID: id})
	}

	return items, nil
}

// Domain errors
var (
	ErrAuth              = NewDomainError("credential validation failed")
	ErrNotInitialized    = NewDomainError("service is not initialized")
	ErrAlreadyInProgress = NewDomainError("a deletion run is already in progress")
	ErrEmptyInput        = NewDomainError("no post ids supplied")
	ErrInvalidInput      = NewDomainError("post ids must be a list of non-empty strings")
	ErrTooManyItems      = NewDomainError("too many post ids for a single run")
	ErrNoActiveRun       = NewDomainError("no deletion run is active")
	ErrShuttingDown      = NewDomainError("service is shutting down")
	ErrInvalidBatchSize  = NewDomainError("items per batch must be positive")
	ErrInvalidDelay      = NewDomainError("delays must not be negative")
)

// DomainError представляет ошибку предметной области
type DomainError struct {
	Message string
}

func (e DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) DomainError {
	return DomainError{Message: message}
}
