// Package domain file: internal/core/domain/field.go
package domain

// 字段的语义类型与分析类型取值（与前端可视化组件的约定一致）
const (
	SemanticQuantitative = "quantitative"
	SemanticTemporal     = "temporal"
	SemanticNominal      = "nominal"

	AnalyticMeasure   = "measure"
	AnalyticDimension = "dimension"
)

// FieldMeta 描述数据表中一列的元数据，每列一条。
// FID 是物理列名，Name 是展示用标签（默认等于 FID，可被数据字典覆盖）。
type FieldMeta struct {
	FID          string `json:"fid"`
	Name         string `json:"name"`
	SemanticType string `json:"semanticType"`
	AnalyticType string `json:"analyticType"`
}
