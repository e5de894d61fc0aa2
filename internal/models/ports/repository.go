package ports

import (
	"context"
	"time"

	"post-purge/internal/models/entities"
)

// PostGateway определяет удаленный API платформы
type PostGateway interface {
	// IdentifyCurrentUser проверяет учетные данные и возвращает владельца
	IdentifyCurrentUser(ctx context.Context) (*entities.Account, error)

	// ListRecentPosts возвращает последние посты пользователя, новые первыми
	ListRecentPosts(ctx context.Context, userID string, limit int) ([]entities.Post, error)

	// DeleteByID удаляет пост; при ограничении частоты возвращает *entities.ThrottleError
	DeleteByID(ctx context.Context, postID string) error
}

// OutcomeSink определяет приемник журнала результатов
type OutcomeSink interface {
	// Name возвращает имя приемника для логов
	Name() string

	// Flush сохраняет упорядоченный журнал завершенного запуска
	Flush(ctx context.Context, report entities.RunReport) error
}

// Clock абстрагирует время для планировщика
type Clock interface {
	Now() time.Time

	// Sleep приостанавливает выполнение; возвращает ошибку контекста при отмене
	Sleep(ctx context.Context, d time.Duration) error
}
