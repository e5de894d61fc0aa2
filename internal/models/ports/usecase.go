package ports

import (
	"context"

	"post-purge/internal/models/entities"
)

// PurgeUseCase определяет бизнес-логику удаления постов
type PurgeUseCase interface {
	// Initialize проверяет учетные данные один раз при старте
	Initialize(ctx context.Context) (*entities.Account, error)

	// Account возвращает текущую учетную запись или nil до инициализации
	Account() *entities.Account

	// ListRecentPosts возвращает последние посты текущего пользователя
	ListRecentPosts(ctx context.Context, limit int) ([]entities.Post, error)

	// StartRun запускает асинхронное удаление и возвращает идентификатор запуска
	StartRun(ctx context.Context, ids []string) (string, error)

	// RunSync выполняет удаление в текущей горутине
	RunSync(ctx context.Context, ids []string) (*entities.RunReport, error)

	// CancelRun отменяет активный запуск
	CancelRun() error

	// QueryStatus возвращает состояние сервиса и прогресс
	QueryStatus() entities.RunStatus

	// QueryProgressPercent возвращает процент выполнения текущего запуска
	QueryProgressPercent() int
}
