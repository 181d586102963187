package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"devsnippet/internal/config"
	"devsnippet/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestExecute_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	cfg := &config.Config{StoreDriver: config.StoreSQLite, Env: "development"}
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, execute(ctx, db, cfg, []string{"auto"}, &out))
	assert.Equal(t, "auto-migrate applied\n", out.String())
	for _, model := range database.PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}

	out.Reset()
	require.NoError(t, execute(ctx, db, cfg, []string{"status"}, &out))
	assert.Equal(t, "mode=hybrid env=development run_sql=false run_auto=true applied=0 pending=0\n", out.String())

	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"up"}, &out), "migrate auto")
	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"down"}, &out), "usage")
	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"down", "x"}, &out), "invalid version")
	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"sideways"}, &out), "usage")
}

func TestExecute_AutoRefusedInProduction(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StorePostgres, Env: "production"}
	err := execute(context.Background(), nil, cfg, []string{"auto"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "refusing auto-migrate")
}
