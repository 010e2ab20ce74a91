// Package sqlite file: internal/adapter/datastore/sqlite/helpers.go
package sqlite

import (
	"GWExplorer/internal/core/domain"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultRowLimit = 500
	maxRowLimit     = 2000
)

// buildPayloadSQL 将 DSL 负载编译为一条参数化 SQL。
// columns 是表的物理列名集，所有负载中引用的字段都必须在其中。
func buildPayloadSQL(tableName string, columns []string, payload *domain.Payload) (string, []any, error) {
	if tableName == "" {
		return "", nil, errors.New("表名不能为空 (buildPayloadSQL)")
	}
	if payload == nil {
		return "", nil, errors.New("DSL 负载不能为空 (buildPayloadSQL)")
	}

	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	var (
		filters []domain.FilterItem
		view    *domain.ViewQuery
		sortBy  []string
		sortDir string
	)

	for _, step := range payload.Workflow {
		switch step.Type {
		case "filter":
			filters = append(filters, step.Filters...)
		case "view":
			if len(step.Query) == 0 {
				continue
			}
			if len(step.Query) > 1 {
				return "", nil, errors.New("view 步骤仅支持单个查询定义")
			}
			if view != nil {
				return "", nil, errors.New("workflow 中出现多个 view 步骤")
			}
			q := step.Query[0]
			view = &q
		case "sort":
			sortBy = step.By
			sortDir = step.Sort
		default:
			return "", nil, fmt.Errorf("不支持的 workflow 步骤类型: '%s'", step.Type)
		}
	}

	selectClause, groupClause, err := buildSelectClause(view, columns, known)
	if err != nil {
		return "", nil, err
	}

	whereClause, whereArgs, err := buildWhereClause(filters, known)
	if err != nil {
		return "", nil, err
	}

	orderClause, err := buildOrderClause(sortBy, sortDir, known)
	if err != nil {
		return "", nil, err
	}

	limit := payload.Limit
	if limit < 1 || limit > maxRowLimit {
		limit = defaultRowLimit
	}
	offset := payload.Offset
	if offset < 0 {
		offset = 0
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectClause)
	sb.WriteString(fmt.Sprintf(" FROM %q", tableName))
	if whereClause != "" {
		sb.WriteString(" ")
		sb.WriteString(whereClause)
	}
	if groupClause != "" {
		sb.WriteString(" ")
		sb.WriteString(groupClause)
	}
	if orderClause != "" {
		sb.WriteString(" ")
		sb.WriteString(orderClause)
	}
	sb.WriteString(" LIMIT ? OFFSET ?")

	args := append(whereArgs, limit, offset)
	return sb.String(), args, nil
}

// buildSelectClause 根据 view 查询生成 SELECT 与 GROUP BY 子句。
// view 为 nil 时退化为取全部物理列的明细查询。
func buildSelectClause(view *domain.ViewQuery, columns []string, known map[string]struct{}) (string, string, error) {
	if view == nil || (view.Op == "raw" && len(view.Fields) == 0) {
		if len(columns) == 0 {
			return "", "", errors.New("表中没有可查询的列")
		}
		return quoteJoin(columns), "", nil
	}

	switch view.Op {
	case "raw":
		for _, f := range view.Fields {
			if _, ok := known[f]; !ok {
				return "", "", fmt.Errorf("字段 '%s' 不存在于目标表中", f)
			}
		}
		return quoteJoin(view.Fields), "", nil

	case "aggregate":
		if len(view.Measures) == 0 {
			return "", "", errors.New("aggregate 查询至少需要一个度量")
		}
		var parts []string
		for _, g := range view.GroupBy {
			if _, ok := known[g]; !ok {
				return "", "", fmt.Errorf("分组字段 '%s' 不存在于目标表中", g)
			}
			parts = append(parts, fmt.Sprintf("%q", g))
		}
		for _, mea := range view.Measures {
			expr, err := aggExpr(mea, known)
			if err != nil {
				return "", "", err
			}
			parts = append(parts, expr)
		}

		groupClause := ""
		if len(view.GroupBy) > 0 {
			groupClause = "GROUP BY " + quoteJoin(view.GroupBy)
		}
		return strings.Join(parts, ", "), groupClause, nil

	default:
		return "", "", fmt.Errorf("不支持的 view 操作: '%s'", view.Op)
	}
}

// aggExpr 为单个度量生成聚合表达式（含别名）。
func aggExpr(m domain.Measure, known map[string]struct{}) (string, error) {
	if _, ok := known[m.Field]; !ok {
		return "", fmt.Errorf("度量字段 '%s' 不存在于目标表中", m.Field)
	}

	alias := m.AsFieldKey
	if alias == "" {
		alias = m.Field + "_" + m.Agg
	}

	switch m.Agg {
	case "sum":
		return fmt.Sprintf("SUM(%q) AS %q", m.Field, alias), nil
	case "count":
		return fmt.Sprintf("COUNT(%q) AS %q", m.Field, alias), nil
	case "mean":
		return fmt.Sprintf("AVG(%q) AS %q", m.Field, alias), nil
	case "min":
		return fmt.Sprintf("MIN(%q) AS %q", m.Field, alias), nil
	case "max":
		return fmt.Sprintf("MAX(%q) AS %q", m.Field, alias), nil
	case "distinctCount":
		return fmt.Sprintf("COUNT(DISTINCT %q) AS %q", m.Field, alias), nil
	default:
		return "", fmt.Errorf("不支持的聚合函数: '%s'", m.Agg)
	}
}

// buildWhereClause 将过滤条件组合为 WHERE 子句，条件之间恒为 AND。
func buildWhereClause(filters []domain.FilterItem, known map[string]struct{}) (string, []any, error) {
	if len(filters) == 0 {
		return "", make([]any, 0), nil
	}

	var conditions []string
	args := make([]any, 0, len(filters))

	for _, f := range filters {
		if _, ok := known[f.FID]; !ok {
			return "", nil, fmt.Errorf("过滤字段 '%s' 不存在于目标表中", f.FID)
		}

		switch f.Rule.Type {
		case "one of", "not in":
			if len(f.Rule.Value) == 0 {
				return "", nil, fmt.Errorf("字段 '%s' 的集合过滤缺少候选值", f.FID)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Rule.Value)), ", ")
			op := "IN"
			if f.Rule.Type == "not in" {
				op = "NOT IN"
			}
			conditions = append(conditions, fmt.Sprintf("%q %s (%s)", f.FID, op, placeholders))
			args = append(args, f.Rule.Value...)

		case "range", "temporal range":
			if len(f.Rule.Value) != 2 {
				return "", nil, fmt.Errorf("字段 '%s' 的区间过滤需要 [min, max] 两个值", f.FID)
			}
			conditions = append(conditions, fmt.Sprintf("%q BETWEEN ? AND ?", f.FID))
			args = append(args, f.Rule.Value[0], f.Rule.Value[1])

		default:
			return "", nil, fmt.Errorf("不支持的过滤规则类型: '%s'", f.Rule.Type)
		}
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

// buildOrderClause 生成 ORDER BY 子句。
func buildOrderClause(by []string, dir string, known map[string]struct{}) (string, error) {
	if len(by) == 0 {
		return "", nil
	}
	for _, b := range by {
		if _, ok := known[b]; !ok {
			return "", fmt.Errorf("排序字段 '%s' 不存在于目标表中", b)
		}
	}

	direction := "ASC"
	switch dir {
	case "", "ascending":
	case "descending":
		direction = "DESC"
	default:
		return "", fmt.Errorf("不支持的排序方向: '%s'", dir)
	}
	return "ORDER BY " + quoteJoin(by) + " " + direction, nil
}

// quoteJoin 将标识符逐个加引号后用逗号连接。
func quoteJoin(idents []string) string {
	quoted := make([]string, 0, len(idents))
	for _, id := range idents {
		quoted = append(quoted, fmt.Sprintf("%q", id))
	}
	return strings.Join(quoted, ", ")
}
