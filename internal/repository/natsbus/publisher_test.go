package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"post-purge/internal/models/entities"
)

// mockConn records published messages.
type mockConn struct {
	mu         sync.Mutex
	msgs       []*nats.Msg
	publishErr error
	flushErr   error
	flushes    int
}

func (m *mockConn) PublishMsg(msg *nats.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockConn) FlushWithContext(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return m.flushErr
}

var _ Conn = (*mockConn)(nil)
var _ Conn = (*nats.Conn)(nil)

func TestPublisher_Flush(t *testing.T) {
	conn := &mockConn{}
	p := NewPublisher(conn, "post_purge.runs.completed", zaptest.NewLogger(t))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.Flush(context.Background(), entities.RunReport{
		RunID:    "run-1",
		Account:  entities.Account{ID: "42", Handle: "someone"},
		Snapshot: entities.ProgressSnapshot{Deleted: 1, Failed: 1, Total: 2},
		Outcomes: []entities.DeletionOutcome{entities.Deleted("1", at), entities.Failed("2", "gone", at)},
	})
	require.NoError(t, err)

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "post_purge.runs.completed", msg.Subject)
	assert.Equal(t, "run-1", msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, 1, conn.flushes)

	var got entities.RunReport
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, []string{"1", "2"}, []string{got.Outcomes[0].ItemID, got.Outcomes[1].ItemID})
	assert.Equal(t, "gone", got.Outcomes[1].Reason)
}

func TestPublisher_EmptyOutcomesEncodeAsArray(t *testing.T) {
	conn := &mockConn{}
	p := NewPublisher(conn, "s", zaptest.NewLogger(t))

	require.NoError(t, p.Flush(context.Background(), entities.RunReport{RunID: "r"}))
	assert.Contains(t, string(conn.msgs[0].Data), `"outcomes":[]`)
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("connection closed")

	p := NewPublisher(&mockConn{publishErr: boom}, "s", zaptest.NewLogger(t))
	err := p.Flush(context.Background(), entities.RunReport{RunID: "r"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "publish to s")

	p = NewPublisher(&mockConn{flushErr: boom}, "s", zaptest.NewLogger(t))
	err = p.Flush(context.Background(), entities.RunReport{RunID: "r"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "flush s")
}
