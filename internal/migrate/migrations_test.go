package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetline/internal/db"
	"assetline/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	applied, err := migrate.MigrateContext(ctx, conn)
	require.NoError(t, err)
	assert.NotEmpty(t, applied)

	again, err := migrate.MigrateContext(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, again)

	v, err = migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 1)
}

func TestApprovalsAreAppendOnly(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO users(id,name,grade,created_at) VALUES ('u1','U','7','2024-01-01T00:00:00Z')`,
		`INSERT INTO items(id,name,is_available,created_at,updated_at) VALUES ('i1','Laptop',1,'2024-01-01T00:00:00Z','2024-01-01T00:00:00Z')`,
		`INSERT INTO requests(id,requester_id,manager_id,start_date,end_date,status,created_at,updated_at)
		 VALUES ('r1','u1','u1','2024-01-02','2024-01-03','Waiting_Manager_Approval','2024-01-01T00:00:00Z','2024-01-01T00:00:00Z')`,
		`INSERT INTO approvals(id,request_id,seq,approver_id,approver_role,decision,decided_at)
		 VALUES ('a1','r1',1,'u1','manager','Revise','2024-01-01T00:00:00Z')`,
	}
	for _, s := range stmts {
		_, err := conn.ExecContext(ctx, s)
		require.NoError(t, err, s)
	}
	_, err = conn.ExecContext(ctx, `UPDATE approvals SET decision='Approved' WHERE id='a1'`)
	assert.Error(t, err)
	_, err = conn.ExecContext(ctx, `DELETE FROM approvals WHERE id='a1'`)
	assert.Error(t, err)
}

func TestRequestDateCheck(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))
	ctx := context.Background()

	_, err = conn.ExecContext(ctx, `INSERT INTO users(id,name,created_at) VALUES ('u1','U','2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO requests(id,requester_id,manager_id,start_date,end_date,status,created_at,updated_at)
		VALUES ('r1','u1','u1','2024-02-02','2024-01-03','Waiting_Manager_Approval','t','t')`)
	assert.Error(t, err)
}
