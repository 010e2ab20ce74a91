// Package domain file: internal/core/domain/payload.go
package domain

// Payload 是调用方提交的 DSL 查询负载。
// 结构沿用可视化组件的 workflow 约定：一串按序执行的步骤，
// 外加可选的行数上限与偏移。
type Payload struct {
	Workflow []WorkflowStep `json:"workflow"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// WorkflowStep 是 workflow 中的一个步骤。
// Type 取值 "filter" / "view" / "sort"，其余字段按类型选用。
type WorkflowStep struct {
	Type    string       `json:"type"`
	Filters []FilterItem `json:"filters,omitempty"`
	Query   []ViewQuery  `json:"query,omitempty"`
	By      []string     `json:"by,omitempty"`
	Sort    string       `json:"sort,omitempty"`
}

// FilterItem 是 filter 步骤中针对单个字段的过滤条件。
type FilterItem struct {
	FID  string     `json:"fid"`
	Rule FilterRule `json:"rule"`
}

// FilterRule 描述过滤规则。
// Type 取值 "one of" / "not in" / "range" / "temporal range"。
// one of / not in 的 Value 是候选值数组；range 的 Value 是 [min, max]。
type FilterRule struct {
	Type  string `json:"type"`
	Value []any  `json:"value"`
}

// ViewQuery 是 view 步骤中的一个查询定义。
// Op 取值 "raw"（按列取明细）或 "aggregate"（分组聚合）。
type ViewQuery struct {
	Op       string    `json:"op"`
	Fields   []string  `json:"fields,omitempty"`
	GroupBy  []string  `json:"groupBy,omitempty"`
	Measures []Measure `json:"measures,omitempty"`
}

// Measure 是 aggregate 查询中的一个聚合度量。
// Agg 取值 sum / count / mean / min / max / distinctCount。
type Measure struct {
	Field      string `json:"field"`
	Agg        string `json:"agg"`
	AsFieldKey string `json:"asFieldKey,omitempty"`
}
