//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/testhelpers"
)

func seedOrders(t *testing.T, db *testhelpers.TestDB) {
	t.Helper()
	db.Seed(t,
		`DROP TABLE IF EXISTS recon_orders`,
		`CREATE TABLE recon_orders (
			id         BIGINT PRIMARY KEY,
			amount     NUMERIC(10,2) NOT NULL,
			status     VARCHAR(20) NOT NULL,
			active     BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			booked_on  DATE NOT NULL,
			order_uuid UUID NOT NULL,
			note       TEXT
		)`,
		`INSERT INTO recon_orders VALUES
			(1, 12.50,  'open',   true,  '2024-05-02T10:30:00Z', '2024-05-02', 'c0fef0aa-93a0-4282-a328-6e09a4b8dd51', 'first'),
			(2, 99.99,  'closed', false, '2024-05-03T11:00:00Z', '2024-05-03', '7f8c0a4e-1111-4222-8333-444455556666', NULL),
			(3, 0.01,   'open',   true,  '2024-05-04T12:00:00Z', '2024-05-04', '00000000-0000-4000-8000-000000000001', 'third'),
			(4, 250.00, 'void',   false, '2024-05-05T13:00:00Z', '2024-05-05', '00000000-0000-4000-8000-000000000002', 'fourth')`,
	)
}

func newIntegrationReader(t *testing.T, db *testhelpers.TestDB, limits reader.Limits, extra map[string]any) *Reader {
	t.Helper()

	options := db.ReaderOptions()
	for k, v := range extra {
		options[k] = v
	}

	r, err := New(models.ReaderSpec{Type: "postgres", Options: options}, limits, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestIntegration_TableRead(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	seedOrders(t, db)

	r := newIntegrationReader(t, db, reader.Limits{QueryTimeout: 30 * time.Second}, map[string]any{
		"table": "public.recon_orders",
	})

	ds, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recon_orders", ds.Name)
	assert.Equal(t, 4, ds.RowCount())

	types := map[string]string{}
	for _, col := range ds.Columns {
		types[col.Name] = col.DeclaredType
	}
	assert.Equal(t, "INT8", types["id"])
	assert.Equal(t, "NUMERIC", types["amount"])
	assert.Equal(t, "VARCHAR", types["status"])
	assert.Equal(t, "BOOL", types["active"])
	assert.Equal(t, "TIMESTAMPTZ", types["created_at"])
	assert.Equal(t, "DATE", types["booked_on"])
	assert.Equal(t, "UUID", types["order_uuid"])
	assert.Equal(t, "TEXT", types["note"])

	amount, ok := ds.Column("amount")
	require.True(t, ok)
	require.Equal(t, models.KindNumber, amount.Values[0].Kind)
	assert.InDelta(t, 12.50, amount.Values[0].Num, 1e-9)

	active, ok := ds.Column("active")
	require.True(t, ok)
	assert.Equal(t, models.KindBool, active.Values[0].Kind)
	assert.True(t, active.Values[0].Bool)

	created, ok := ds.Column("created_at")
	require.True(t, ok)
	require.Equal(t, models.KindTime, created.Values[0].Kind)
	assert.True(t, created.Values[0].Time.Equal(time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)))

	booked, ok := ds.Column("booked_on")
	require.True(t, ok)
	assert.Equal(t, models.KindTime, booked.Values[0].Kind)

	ids, ok := ds.Column("order_uuid")
	require.True(t, ok)
	assert.Equal(t, "c0fef0aa-93a0-4282-a328-6e09a4b8dd51", ids.Values[0].Str)

	note, ok := ds.Column("note")
	require.True(t, ok)
	assert.True(t, note.Values[1].IsNull())
	assert.Equal(t, "first", note.Values[0].Str)
}

func TestIntegration_QueryWithParams(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	seedOrders(t, db)

	r := newIntegrationReader(t, db, reader.Limits{QueryTimeout: 30 * time.Second}, map[string]any{
		"query":  "SELECT id, status FROM recon_orders WHERE status = {{status}} ORDER BY id",
		"params": map[string]any{"status": "open"},
	})

	ds, err := r.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, ds.RowCount())

	ids, ok := ds.Column("id")
	require.True(t, ok)
	assert.InDelta(t, 1, ids.Values[0].Num, 1e-9)
	assert.InDelta(t, 3, ids.Values[1].Num, 1e-9)
}

func TestIntegration_LimitTruncates(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	seedOrders(t, db)

	r := newIntegrationReader(t, db, reader.Limits{QueryTimeout: 30 * time.Second}, map[string]any{
		"table": "public.recon_orders",
		"limit": 2,
	})

	ds, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount())
}

func TestIntegration_RowCapExceeded(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	seedOrders(t, db)

	r := newIntegrationReader(t, db, reader.Limits{QueryTimeout: 30 * time.Second, MaxRows: 2}, map[string]any{
		"table": "public.recon_orders",
	})

	_, err := r.Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cap")
}
