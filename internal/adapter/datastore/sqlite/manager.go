// Package sqlite — 只读数据存储的表解析器工厂 (SQLite 适配)
// internal/adapter/datastore/sqlite/manager.go
package sqlite

import (
	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// 断言 *Manager 实现 port.Datastore 接口，编译期校验
var _ port.Datastore = (*Manager)(nil)

const (
	debounceDuration = 2 * time.Second
)

// Manager 管理指向数据存储的单个只读连接池。
// 连接池参数完全由外部配置提供；字段元数据按表缓存，
// 文件事件（见 watcher.go）会使缓存失效。
type Manager struct {
	mu sync.RWMutex

	// readURL 是平台级的只读 DSN
	readURL string

	// params 是 DSL 配置段提供的连接池参数
	params port.EngineParams

	// db 是惰性打开的共享连接池
	db *sql.DB

	// fieldCache 缓存每张表的字段元数据
	fieldCache map[string][]domain.FieldMeta

	// eventTimers 用于文件系统事件的防抖处理
	eventTimers   map[string]*time.Timer
	eventTimersMu sync.Mutex
}

// NewManager 创建一个新的 Manager 实例。readURL 允许为空，
// 空值会在首次取解析器时以连接错误报告（与配置缺失的语义一致）。
func NewManager(readURL string, params port.EngineParams) *Manager {
	return &Manager{
		readURL:     readURL,
		params:      params,
		fieldCache:  make(map[string][]domain.FieldMeta),
		eventTimers: make(map[string]*time.Timer),
	}
}

// Type 实现 port.Datastore.Type 接口，返回适配器类型。
func (m *Manager) Type() string {
	return "sqlite_datastore"
}

// engine 返回共享连接池，必要时先行打开并应用池参数。
func (m *Manager) engine(ctx context.Context) (*sql.DB, error) {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return m.db, nil
	}

	if m.readURL == "" {
		return nil, fmt.Errorf("%w: 未配置数据存储只读 URL", port.ErrConnectionFailed)
	}

	db, err := sql.Open("sqlite", m.readURL)
	if err != nil {
		return nil, fmt.Errorf("%w: sql.Open '%s' 失败: %v", port.ErrConnectionFailed, m.readURL, err)
	}

	// 池参数映射: 常驻=PoolSize, 峰值=PoolSize+MaxOverflow, 回收=PoolRecycle 秒
	db.SetMaxIdleConns(m.params.PoolSize)
	db.SetMaxOpenConns(m.params.PoolSize + m.params.MaxOverflow)
	db.SetConnMaxLifetime(time.Duration(m.params.PoolRecycle) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping 数据存储失败: %v", port.ErrConnectionFailed, err)
	}

	if m.params.EchoPool {
		stats := db.Stats()
		slog.Debug("数据存储连接池已建立",
			"max_open", m.params.PoolSize+m.params.MaxOverflow,
			"max_idle", m.params.PoolSize,
			"recycle_seconds", m.params.PoolRecycle,
			"open", stats.OpenConnections)
	}

	m.db = db
	return m.db, nil
}

// TableParser 实现 port.Datastore 接口，为指定表构建解析器。
// 表不存在或连接不可用时返回包装后的 ErrConnectionFailed。
func (m *Manager) TableParser(ctx context.Context, tableName string) (port.TableParser, error) {
	if tableName == "" {
		return nil, fmt.Errorf("%w: 表名不能为空", port.ErrConnectionFailed)
	}

	db, err := m.engine(ctx)
	if err != nil {
		return nil, err
	}

	var exists int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, tableName).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: 探测表 '%s' 失败: %v", port.ErrConnectionFailed, tableName, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: 数据存储中不存在表 '%s'", port.ErrConnectionFailed, tableName)
	}

	return &Parser{manager: m, table: tableName}, nil
}

// HealthCheck 实现 port.Datastore.HealthCheck
func (m *Manager) HealthCheck(ctx context.Context) error {
	db, err := m.engine(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close 关闭共享连接池（主要供测试与停机流程使用）。
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// invalidate 清空字段缓存并丢弃当前连接池，下次调用时重建。
func (m *Manager) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fieldCache = make(map[string][]domain.FieldMeta)
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			slog.Warn("关闭失效的数据存储连接池时发生错误", "error", err)
		}
		m.db = nil
	}
}
