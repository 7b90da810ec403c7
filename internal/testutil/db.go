// Package testutil 测试用的内存论坛数据库、数据构造器和记录型依赖
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var dbSeq atomic.Int64

// OpenDB 创建带完整表结构的内存数据库，测试结束时关闭
func OpenDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:forumtest%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	for _, stmt := range reservedGroups {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}
