package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/order"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_AppendAndGet(t *testing.T) {
	t.Parallel()
	s := newSQLite(t)

	req, err := order.New("alice", "BTC-USD", order.Buy, order.Limit, 3, order.WithLimitPrice(59_000))
	require.NoError(t, err)
	require.NoError(t, s.Append(NewRecord(req)))

	rec, err := s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, rec.Status)
	assert.Equal(t, order.Limit, rec.Type)
	require.NotNil(t, rec.LimitPrice)
	assert.Equal(t, 59_000.0, *rec.LimitPrice)
	assert.Nil(t, rec.StopPrice)

	// Primary key holds.
	assert.Error(t, s.Append(NewRecord(req)))

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RecordFillLifecycle(t *testing.T) {
	t.Parallel()
	s := newSQLite(t)

	req := newRequest(t)
	require.NoError(t, s.Append(NewRecord(req)))

	at := req.CreatedAt.Add(time.Minute)
	partial := order.NewFill(req, 171, 4, 0.684, at)
	require.NoError(t, s.RecordFill(partial))

	rec, err := s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPartiallyFilled, rec.Status)
	assert.Equal(t, 4.0, rec.FilledQuantity)

	rest := order.NewFill(req, 172, 6, 1.032, at.Add(time.Minute))
	require.NoError(t, s.RecordFill(rest))

	rec, err = s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFilled, rec.Status)
	assert.Equal(t, 10.0, rec.FilledQuantity)
	assert.Equal(t, 172.0, rec.FillPrice)
	assert.InDelta(t, 1.716, rec.Commission, 1e-9)
}

func TestSQLiteStore_RecordFillIdempotent(t *testing.T) {
	t.Parallel()
	s := newSQLite(t)

	req := newRequest(t)
	require.NoError(t, s.Append(NewRecord(req)))

	fl := order.NewFill(req, 171, 10, 1.71, req.CreatedAt.Add(time.Minute))
	require.NoError(t, s.RecordFill(fl))
	require.NoError(t, s.RecordFill(fl))

	rec, err := s.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.FilledQuantity)

	fills, err := s.Fills("alice")
	require.NoError(t, err)
	assert.Len(t, fills, 1)
}

func TestSQLiteStore_RecordFillUnknownOrder(t *testing.T) {
	t.Parallel()
	s := newSQLite(t)

	req := newRequest(t)
	err := s.RecordFill(order.NewFill(req, 171, 10, 0, time.Now().UTC()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateStatusAndListOpen(t *testing.T) {
	t.Parallel()
	s := newSQLite(t)

	open := newRequest(t)
	require.NoError(t, s.Append(NewRecord(open)))
	canceled := newRequest(t)
	require.NoError(t, s.Append(NewRecord(canceled)))

	require.NoError(t, s.UpdateStatus(canceled.ID, order.StatusCanceled, "canceled by owner", time.Now().UTC()))
	assert.ErrorIs(t, s.UpdateStatus("missing", order.StatusCanceled, "", time.Now().UTC()), ErrNotFound)

	got, err := s.ListOpen("alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].OrderID)

	all, err := s.ListByOwner("alice")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStore_FillsFIFOReconstruction(t *testing.T) {
	t.Parallel()
	s := newSQLite(t)

	buy := newRequest(t)
	require.NoError(t, s.Append(NewRecord(buy)))
	sellReq, err := order.New("alice", "BTC-USD", order.Sell, order.Market, 10)
	require.NoError(t, err)
	require.NoError(t, s.Append(NewRecord(sellReq)))

	at := buy.CreatedAt.Add(time.Minute)
	require.NoError(t, s.RecordFill(order.NewFill(buy, 171, 10, 1.71, at)))
	require.NoError(t, s.RecordFill(order.NewFill(sellReq, 180, 10, 1.8, at.Add(time.Minute))))

	trades, err := GetProcessedTrades(s, "alice")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 90, trades[0].RealizedPL, 1e-9)
	assert.InDelta(t, 3.51, trades[0].Commission, 1e-9)
}
