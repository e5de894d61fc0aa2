package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

// DefaultTable имя таблицы журнала по умолчанию
const DefaultTable = "post_purge_outcomes"

type outcomeRow struct {
	RunID     string    `db:"run_id"`
	AccountID string    `db:"account_id"`
	Seq       int       `db:"seq"`
	PostID    string    `db:"post_id"`
	Status    string    `db:"status"`
	Reason    *string   `db:"reason"`
	OutcomeAt time.Time `db:"outcome_at"`
}

type outcomeRepository struct {
	db     *sqlx.DB
	table  string
	logger *zap.Logger
}

// NewOutcomeRepository создает приемник журнала результатов в PostgreSQL
func NewOutcomeRepository(db *sqlx.DB, table string, logger *zap.Logger) (ports.OutcomeSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if !isValidTableName(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	return &outcomeRepository{
		db:     db,
		table:  table,
		logger: logger,
	}, nil
}

func (r *outcomeRepository) Name() string {
	return "postgres"
}

// Flush записывает журнал запуска одной транзакцией
func (r *outcomeRepository) Flush(ctx context.Context, report entities.RunReport) (err error) {
	// Начинаем транзакцию с уровнем изоляции READ COMMITTED
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Параллельный CREATE TABLE IF NOT EXISTS может упасть на уникальности каталога
	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockID(r.table)); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	if _, err = tx.ExecContext(ctx, createTableQuery(r.table)); err != nil {
		return fmt.Errorf("ensure outcome table: %w", err)
	}

	rows := toRows(report)
	if len(rows) > 0 {
		query := fmt.Sprintf(`
			INSERT INTO %s (run_id, account_id, seq, post_id, status, reason, outcome_at)
			VALUES (:run_id, :account_id, :seq, :post_id, :status, :reason, :outcome_at)
		`, r.table)

		if _, err = tx.NamedExecContext(ctx, query, rows); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
	}

	// Завершаем транзакцию
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("Outcome log stored",
		zap.String("table", r.table),
		zap.String("run_id", report.RunID),
		zap.Int("rows", len(rows)))

	return nil
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			account_id TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			post_id TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			outcome_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (run_id, seq)
		)
	`, table)
}

func toRows(report entities.RunReport) []outcomeRow {
	rows := make([]outcomeRow, 0, len(report.Outcomes))
	for i, o := range report.Outcomes {
		row := outcomeRow{
			RunID:     report.RunID,
			AccountID: report.Account.ID,
			Seq:       i,
			PostID:    o.ItemID,
			Status:    string(o.Status),
			OutcomeAt: o.Timestamp,
		}
		if o.Reason != "" {
			reason := o.Reason
			row.Reason = &reason
		}
		rows = append(rows, row)
	}
	return rows
}

// Вспомогательные функции

// lockID генерирует ID advisory lock из имени таблицы
func lockID(table string) int64 {
	h := fnv.New64a()
	h.Write([]byte(table))
	return int64(h.Sum64())
}

// isValidTableName проверяет, является ли имя таблицы безопасным для использования в SQL
func isValidTableName(name string) bool {
	if name == "" {
		return false
	}

	// Только буквы, цифры и подчеркивания
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}

	forbidden := []string{"drop", "delete", "insert", "update"}
	nameLower := strings.ToLower(name)
	for _, word := range forbidden {
		if strings.Contains(nameLower, word) {
			return false
		}
	}

	return true
}
