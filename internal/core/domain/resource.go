// Package domain file: internal/core/domain/resource.go
package domain

import "time"

// Resource 表示目录中的一个数据集文件/表条目。
type Resource struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Format          string    `json:"format"`
	URL             string    `json:"url"`
	DatastoreActive bool      `json:"datastore_active"`
	Private         bool      `json:"private"`
	CreatedAt       time.Time `json:"created_at"`
}

// FieldInfo 是资源数据字典中的一条字段说明。
type FieldInfo struct {
	FieldID string `json:"field_id"`
	Label   string `json:"label"`
	Notes   string `json:"notes,omitempty"`
}

// Identity 表示一次请求携带的已认证身份；nil 表示匿名访问。
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
