package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"travelx/internal/config"
	"travelx/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:   "sqlite",
		SQLiteDBPath:  "/tmp/x.db",
		DataDir:       "seed",
		AdminUsername: "admin",
		AdminPassword: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLiteDBPath)
	assert.Equal(t, "seed", cfg.DataDirectory)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestCreateBackend_Memory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_users.txt"), []byte("priya:pw123:Priya S\n"), 0o600))

	f := NewFactory(log.Discard().Logger)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	require.NoError(t, res.Ping(context.Background()))
	assert.Nil(t, res.Cleanup)

	u, err := res.Store.FindActiveUser(context.Background(), "priya")
	require.NoError(t, err)
	assert.Equal(t, "Priya S", u.FullName)
}

func TestCreateBackend_SQLiteWithAdmin(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	res, err := f.CreateBackend(ctx, Config{
		Type:          SQLiteBackend,
		SQLiteDBPath:  filepath.Join(t.TempDir(), "travelx.db"),
		AdminUsername: "admin",
		AdminPassword: "correct horse",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	require.NoError(t, res.Ping(ctx))
	u, err := res.Store.FindActiveUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")))
}

func TestCreateBackend_Invalid(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateBackend(context.Background(), Config{Type: "sheets"})
	require.Error(t, err)

	_, err = f.CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	require.Error(t, err)
}
