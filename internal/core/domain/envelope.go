// Package domain file: internal/core/domain/envelope.go
package domain

// MetadataEnvelope 是元数据端点的固定响应信封。
type MetadataEnvelope struct {
	Success    bool        `json:"success"`
	Schema     []FieldMeta `json:"schema"`
	Name       string      `json:"name"`
	ResourceID string      `json:"resource_id"`
	Message    string      `json:"message"`
}

// QueryEnvelope 是查询端点的固定响应信封。
type QueryEnvelope struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data"`
	Message string           `json:"message"`
}

// ValidationDetail 是缺失字段错误中的单条明细。
type ValidationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError 是参数校验失败时的固定错误形状。
type ValidationError struct {
	Detail []ValidationDetail `json:"detail"`
}

// MissingField 构造指定字段的标准缺失错误。
// msg 为空时使用缺省文案 "field required"。
func MissingField(field, msg string) *ValidationError {
	if msg == "" {
		msg = "field required"
	}
	return &ValidationError{
		Detail: []ValidationDetail{
			{
				Loc:  []string{"query", field},
				Msg:  msg,
				Type: "value_error.missing",
			},
		},
	}
}
