package s3blob

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

type fakeWriter struct {
	puts map[string][]byte
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[path] = b
	return nil
}

func (f *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

type fakePositionSource struct {
	positions []domain.Position
}

func (f *fakePositionSource) ListClosedBefore(context.Context, time.Time) ([]domain.Position, error) {
	return f.positions, nil
}

type fakeAuditSource struct {
	entries []domain.AuditEntry
}

func (f *fakeAuditSource) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return f.entries, nil
}

type fakeAuditLog struct {
	events []string
}

func (f *fakeAuditLog) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditLog) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveClosedPositions(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{}
	audit := &fakeAuditLog{}
	a := NewArchiver(writer, &fakePositionSource{positions: []domain.Position{
		{BrokerTradeID: "1", Status: domain.PositionStatusClosed},
		{BrokerTradeID: "2", Status: domain.PositionStatusClosed},
	}}, &fakeAuditSource{}, audit)

	count, err := a.ArchiveClosedPositions(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	data, ok := writer.puts["archive/positions/2026-08.jsonl"]
	require.True(t, ok)
	// Two JSONL lines.
	assert.Equal(t, 2, countLines(data))
	assert.Contains(t, audit.events, "archive.positions")
}

func TestArchiveClosedPositionsEmpty(t *testing.T) {
	writer := &fakeWriter{}
	a := NewArchiver(writer, &fakePositionSource{}, &fakeAuditSource{}, &fakeAuditLog{})

	count, err := a.ArchiveClosedPositions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.puts)
}

func TestArchiveAuditLog(t *testing.T) {
	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{}
	audit := &fakeAuditLog{}
	a := NewArchiver(writer, &fakePositionSource{}, &fakeAuditSource{entries: []domain.AuditEntry{
		{ID: 1, Event: "trade.placed"},
	}}, audit)

	count, err := a.ArchiveAuditLog(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, ok := writer.puts["archive/audit/2026-07.jsonl"]
	assert.True(t, ok)
	assert.Contains(t, audit.events, "archive.audit")
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}
