// Package port file: internal/core/port/catalog.go
package port

import (
	"GWExplorer/internal/core/domain"
	"context"
)

// Catalog 抽象宿主平台的资源目录协作接口。
// ResourceShow 对应平台的 resource_show，FieldInfos 对应 datastore_search
// 的字段（含数据字典标签）部分。
type Catalog interface {
	// ResourceShow 按 ID 返回资源记录；不存在时返回 ErrResourceNotFound
	ResourceShow(ctx context.Context, resourceID string) (*domain.Resource, error)

	// FieldInfos 返回资源数据字典中的字段条目（字段 ID → 标签等）
	FieldInfos(ctx context.Context, resourceID string) ([]domain.FieldInfo, error)

	// CheckAccess 执行 resource_show 授权检查。
	// 公开资源放行；私有资源要求已认证身份，否则返回 ErrAccessDenied。
	CheckAccess(ctx context.Context, identity *domain.Identity, resourceID string) error
}
