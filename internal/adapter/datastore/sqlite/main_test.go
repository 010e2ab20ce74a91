// file: internal/adapter/datastore/sqlite/main_test.go
package sqlite

import (
	"GWExplorer/internal/core/port"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// ============================================================================
//  共享测试辅助工具 (Shared Test Helpers)
// ============================================================================

// createTestStore 创建一个带有指定 schema 的临时数据存储文件，
// 返回文件 DSN 与直接操作它的连接。
// 这个定义将在这个包的所有测试文件中共享。
func createTestStore(t *testing.T, createStmts ...string) (dsn string, db *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.db")

	// 使用与生产代码一致的 DSN，启用 WAL 模式避免锁定问题
	dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	for _, stmt := range createStmts {
		_, err = db.Exec(stmt)
		require.NoError(t, err, "Failed to execute statement: %s", stmt)
	}

	// t.Cleanup 会在每个测试（或子测试）结束时自动执行清理代码
	t.Cleanup(func() {
		db.Close()
	})

	return dsn, db
}

// newTestManager 用默认池参数构建指向临时数据存储的 Manager。
func newTestManager(t *testing.T, dsn string) *Manager {
	t.Helper()
	m := NewManager(dsn, port.EngineParams{
		PoolSize:    15,
		MaxOverflow: 100,
		PoolRecycle: 3600,
	})
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m
}

const salesSchema = `
CREATE TABLE sales (
	_id INTEGER PRIMARY KEY,
	region TEXT,
	amount REAL,
	sold_at DATE
)`
