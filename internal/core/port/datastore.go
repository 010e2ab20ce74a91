// Package port file: internal/core/port/datastore.go
package port

import (
	"GWExplorer/internal/core/domain"
	"context"
	"errors"
)

// Standard errors
var (
	// ErrConnectionFailed 数据库连接失败（对应 DSL 的连接类错误）
	ErrConnectionFailed = errors.New("数据库连接失败")
	// ErrQueryFailed DSL 查询执行失败（对应 DSL 的查询类错误）
	ErrQueryFailed = errors.New("DSL 查询执行失败")
	// ErrResourceNotFound 目录中不存在指定资源
	ErrResourceNotFound = errors.New("指定的资源未找到")
	// ErrAccessDenied 访问被授权检查拒绝
	ErrAccessDenied = errors.New("权限不足，访问被拒绝")
)

// EngineParams 描述连接池的外部参数（均由配置层提供）。
type EngineParams struct {
	PoolSize    int  // 常驻连接数
	MaxOverflow int  // 峰值时允许超出的连接数
	PoolRecycle int  // 连接最大存活秒数
	Echo        bool // 打印执行的 SQL 语句
	EchoPool    bool // 打印连接池状态
}

// TableParser 定义针对单张数据表的解析能力。
// RawFields 返回物理列的元数据；QueryByPayload 将 DSL 负载翻译为 SQL 并执行。
type TableParser interface {
	RawFields(ctx context.Context) ([]domain.FieldMeta, error)
	QueryByPayload(ctx context.Context, payload *domain.Payload) ([]map[string]any, error)
}

// Datastore 接口定义
type Datastore interface {
	// TableParser 为指定表名构建解析器
	TableParser(ctx context.Context, tableName string) (TableParser, error)

	// HealthCheck 检查数据存储的健康状况
	HealthCheck(ctx context.Context) error

	// Type 返回适配器的类型标识符
	Type() string
}
