// Package catalog internal/catalog/service.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Service 是 port.Catalog 的 SQLite 实现。
// 它承担宿主平台目录协作的两件事：resource_show（含授权检查）
// 与数据字典字段查询，并对资源记录做带过期时间的 LRU 缓存。
type Service struct {
	db    *sql.DB
	cache *lru.LRU[string, *domain.Resource]
}

// 静态断言，确保 Service 实现了 port.Catalog 接口。
var _ port.Catalog = (*Service)(nil)

// NewService 创建一个新的目录服务实例。
// maxCacheEntries: 缓存中允许的最大资源条目数。
// defaultCacheTTL: 缓存条目的默认过期时间。
func NewService(db *sql.DB, maxCacheEntries int, defaultCacheTTL time.Duration) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("catalog.Service 初始化失败: db 实例不能为 nil")
	}
	if maxCacheEntries <= 0 {
		maxCacheEntries = 1000
	}
	if defaultCacheTTL <= 0 {
		defaultCacheTTL = 5 * time.Minute
	}

	cacheInstance := lru.NewLRU[string, *domain.Resource](maxCacheEntries, nil, defaultCacheTTL)

	return &Service{
		db:    db,
		cache: cacheInstance,
	}, nil
}

// InitCatalogTables 初始化目录表结构 (如果不存在)。
func InitCatalogTables(db *sql.DB) error {
	_, err := db.Exec(`
       CREATE TABLE IF NOT EXISTS resource(
          id TEXT PRIMARY KEY,
          name TEXT NOT NULL,
          format TEXT NOT NULL DEFAULT '',
          url TEXT NOT NULL DEFAULT '',
          datastore_active INTEGER NOT NULL DEFAULT 0,
          private INTEGER NOT NULL DEFAULT 0,
          created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
       );
    `)
	if err != nil {
		return fmt.Errorf("创建 resource 表失败: %w", err)
	}

	_, err = db.Exec(`
       CREATE TABLE IF NOT EXISTS resource_field_info(
          resource_id TEXT NOT NULL,
          field_id TEXT NOT NULL,
          label TEXT NOT NULL DEFAULT '',
          notes TEXT NOT NULL DEFAULT '',
          PRIMARY KEY (resource_id, field_id)
       );
    `)
	if err != nil {
		return fmt.Errorf("创建 resource_field_info 表失败: %w", err)
	}
	return nil
}

// ResourceShow 按 ID 返回资源记录，优先命中缓存。
// 资源不存在时返回 port.ErrResourceNotFound。
func (s *Service) ResourceShow(ctx context.Context, resourceID string) (*domain.Resource, error) {
	if resourceID == "" {
		return nil, port.ErrResourceNotFound
	}

	if cached, found := s.cache.Get(resourceID); found {
		return cached, nil
	}

	res := &domain.Resource{}
	var datastoreActive, private int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, format, url, datastore_active, private, created_at FROM resource WHERE id = ?`,
		resourceID).Scan(&res.ID, &res.Name, &res.Format, &res.URL, &datastoreActive, &private, &res.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询资源 '%s' 失败: %w", resourceID, err)
	}
	res.DatastoreActive = datastoreActive != 0
	res.Private = private != 0

	s.cache.Add(resourceID, res)
	return res, nil
}

// FieldInfos 返回资源数据字典中的字段条目，按字段 ID 排序。
func (s *Service) FieldInfos(ctx context.Context, resourceID string) ([]domain.FieldInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_id, label, notes FROM resource_field_info WHERE resource_id = ? ORDER BY field_id`,
		resourceID)
	if err != nil {
		return nil, fmt.Errorf("查询资源 '%s' 的数据字典失败: %w", resourceID, err)
	}
	defer rows.Close()

	var infos []domain.FieldInfo
	for rows.Next() {
		var info domain.FieldInfo
		if err := rows.Scan(&info.FieldID, &info.Label, &info.Notes); err != nil {
			slog.Warn("扫描数据字典条目失败，跳过", "resource_id", resourceID, "error", err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// CheckAccess 执行 resource_show 授权检查。
// 资源不存在返回 ErrResourceNotFound；私有资源要求已认证身份。
func (s *Service) CheckAccess(ctx context.Context, identity *domain.Identity, resourceID string) error {
	res, err := s.ResourceShow(ctx, resourceID)
	if err != nil {
		return err
	}
	if res.Private && identity == nil {
		return fmt.Errorf("%w: 资源 '%s' 为私有", port.ErrAccessDenied, resourceID)
	}
	return nil
}

// CreateResource 注册一条资源记录，ID 为空时自动生成 uuid。
func (s *Service) CreateResource(ctx context.Context, res *domain.Resource) error {
	if res == nil {
		return errors.New("资源记录不能为 nil")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resource (id, name, format, url, datastore_active, private, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Name, res.Format, res.URL, boolToInt(res.DatastoreActive), boolToInt(res.Private), res.CreatedAt)
	if err != nil {
		return fmt.Errorf("写入资源 '%s' 失败: %w", res.ID, err)
	}
	s.cache.Remove(res.ID)
	return nil
}

// SetFieldInfo 写入或更新数据字典中的一条字段说明。
func (s *Service) SetFieldInfo(ctx context.Context, resourceID string, info domain.FieldInfo) error {
	if resourceID == "" || info.FieldID == "" {
		return errors.New("resource_id 与 field_id 不能为空")
	}
	_, err := s.db.ExecContext(ctx, `
       INSERT INTO resource_field_info (resource_id, field_id, label, notes) VALUES (?, ?, ?, ?)
       ON CONFLICT(resource_id, field_id) DO UPDATE SET label = excluded.label, notes = excluded.notes`,
		resourceID, info.FieldID, info.Label, info.Notes)
	if err != nil {
		return fmt.Errorf("写入资源 '%s' 字段 '%s' 的字典条目失败: %w", resourceID, info.FieldID, err)
	}
	return nil
}

// InvalidateResource 手动使指定资源的缓存失效。
func (s *Service) InvalidateResource(resourceID string) {
	if resourceID == "" {
		return
	}
	s.cache.Remove(resourceID)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
