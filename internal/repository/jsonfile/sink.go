package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

// Record представляет одну запись журнала в файле
type Record struct {
	ID        string                 `json:"id"`
	Status    entities.OutcomeStatus `json:"status"`
	DeletedAt *time.Time             `json:"deleted_at,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
}

type sink struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSink создает приемник, дописывающий результаты в JSON-массив на диске
func NewSink(path string, logger *zap.Logger) ports.OutcomeSink {
	return &sink{path: path, logger: logger}
}

func (s *sink) Name() string {
	return "json"
}

// Flush дописывает записи запуска в конец массива, сохраняя существующие
func (s *sink) Flush(ctx context.Context, report entities.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := ReadRecords(s.path)
	if err != nil {
		return err
	}

	for _, o := range report.Outcomes {
		records = append(records, toRecord(report.RunID, o))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outcome log: %w", err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить обрезанный массив
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".outcomes-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write outcome log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close outcome log: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace outcome log: %w", err)
	}

	s.logger.Info("Outcome log written",
		zap.String("path", s.path),
		zap.String("run_id", report.RunID),
		zap.Int("appended", len(report.Outcomes)),
		zap.Int("total_records", len(records)))

	return nil
}

// ReadRecords читает журнал; отсутствующий или пустой файл дает пустой журнал
func ReadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outcome log: %w", err)
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode outcome log %s: %w", path, err)
	}

	return records, nil
}

func toRecord(runID string, o entities.DeletionOutcome) Record {
	r := Record{
		ID:        o.ItemID,
		Status:    o.Status,
		Timestamp: o.Timestamp,
		RunID:     runID,
	}

	if o.Status == entities.OutcomeDeleted {
		at := o.Timestamp
		r.DeletedAt = &at
	} else {
		r.Reason = o.Reason
	}

	return r
}
