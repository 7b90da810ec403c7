package database

import (
	"path/filepath"
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "forum.db")}

	conn, err := Open(cfg)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec("CREATE TABLE settings (variable TEXT PRIMARY KEY, value TEXT)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO settings VALUES (?, ?)", "totalTopics", "3")
	require.NoError(t, err)

	var v string
	require.NoError(t, conn.Get(&v, "SELECT value FROM settings WHERE variable = ?", "totalTopics"))
	assert.Equal(t, "3", v)
}

func TestInitAndPing(t *testing.T) {
	assert.NoError(t, Ping())

	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "forum.db")}
	require.NoError(t, Init(cfg))
	defer Close()
	assert.NotNil(t, Get())
	assert.NoError(t, Ping())
}

func TestDSN(t *testing.T) {
	mysql := &config.DatabaseConfig{Driver: "mysql", Username: "u", Password: "p", Host: "db", Port: 3306, Name: "forum"}
	assert.Equal(t, "u:p@tcp(db:3306)/forum?parseTime=true&charset=utf8mb4", mysql.GetDSN())

	lite := &config.DatabaseConfig{Driver: "sqlite", Path: "/tmp/f.db"}
	assert.Equal(t, "file:/tmp/f.db?_pragma=busy_timeout(5000)", lite.GetDSN())
}
