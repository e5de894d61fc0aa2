package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

// Conn часть *nats.Conn, которая нужна приемнику
type Conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

type publisher struct {
	conn    Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher создает приемник, публикующий отчет о запуске в NATS
func NewPublisher(conn Conn, subject string, logger *zap.Logger) ports.OutcomeSink {
	return &publisher{conn: conn, subject: subject, logger: logger}
}

// Connect подключается к NATS и логирует переподключения
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("post-purge"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

func (p *publisher) Name() string {
	return "nats"
}

// Flush публикует отчет и дожидается подтверждения сервера
func (p *publisher) Flush(ctx context.Context, report entities.RunReport) error {
	if report.Outcomes == nil {
		report.Outcomes = []entities.DeletionOutcome{}
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, report.RunID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}

	p.logger.Info("Run report published",
		zap.String("subject", p.subject),
		zap.String("run_id", report.RunID),
		zap.Int("outcomes", len(report.Outcomes)))

	return nil
}
