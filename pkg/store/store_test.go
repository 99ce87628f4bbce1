package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birddigital/voicebridge/pkg/telephony"
)

// fakeRow and fakeDB exercise the SQL-shaping logic in this package without
// a live Postgres connection. They satisfy DB's QueryRow/Exec surface only;
// LoadSnapshot's multi-row tool_connection scan needs pgx.Rows and is left
// to integration testing against a real database.
type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	queryRow func(ctx context.Context, sql string, args ...any) pgx.Row
	exec     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (f fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(ctx, sql, args...)
}

func (f fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented in fake")
}

func (f fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(ctx, sql, args...)
}

func TestAllocateCallReturnsGeneratedID(t *testing.T) {
	var gotArgs []any
	db := fakeDB{exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		gotArgs = args
		return pgconn.CommandTag{}, nil
	}}
	cs := NewCallStore(db)

	callID, err := cs.AllocateCall(context.Background(), "agent-1", "+15551234567")
	require.NoError(t, err)
	assert.NotEmpty(t, callID)
	assert.Equal(t, callID, gotArgs[0])
	assert.Equal(t, "agent-1", gotArgs[1])
	assert.Equal(t, "+15551234567", gotArgs[2])
}

func TestFinalizeCallPassesStatusAndID(t *testing.T) {
	var gotArgs []any
	db := fakeDB{exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		gotArgs = args
		return pgconn.CommandTag{}, nil
	}}
	cs := NewCallStore(db)

	err := cs.FinalizeCall(context.Background(), "call-1", "completed")
	require.NoError(t, err)
	assert.Equal(t, "call-1", gotArgs[0])
	assert.Equal(t, "completed", gotArgs[1])
}

func TestResolveAgentByPhoneNumberNotFound(t *testing.T) {
	db := fakeDB{queryRow: func(ctx context.Context, sql string, args ...any) pgx.Row {
		return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	}}
	as := NewAgentStore(db)

	_, err := as.ResolveAgentByPhoneNumber(context.Background(), "+15551234567")
	assert.ErrorIs(t, err, telephony.ErrAgentNotFound)
}

func TestHasActiveSubscriptionScansBool(t *testing.T) {
	db := fakeDB{queryRow: func(ctx context.Context, sql string, args ...any) pgx.Row {
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}}
	}}
	as := NewAgentStore(db)

	active, err := as.HasActiveSubscription(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestCompletedMinutesScansFloat(t *testing.T) {
	db := fakeDB{queryRow: func(ctx context.Context, sql string, args ...any) pgx.Row {
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*float64)) = 12.5
			return nil
		}}
	}}
	as := NewAgentStore(db)

	minutes, err := as.CompletedMinutes(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, minutes)
}
