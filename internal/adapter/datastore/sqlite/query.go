// Package sqlite file: internal/adapter/datastore/sqlite/query.go
package sqlite

import (
	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"
	"context"
	"fmt"
	"log/slog"
)

// QueryByPayload 实现 port.TableParser 接口。
// 将 DSL 负载编译为 SQL 并执行，行数据经过帧编码后返回。
// 编译与执行的任何失败都以 ErrQueryFailed 包装上抛。
func (p *Parser) QueryByPayload(ctx context.Context, payload *domain.Payload) ([]map[string]any, error) {
	fields, err := p.RawFields(ctx)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, f.FID)
	}

	sqlQuery, args, err := buildPayloadSQL(p.table, columns, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrQueryFailed, err)
	}

	if p.manager.params.Echo {
		slog.Debug("执行 DSL 查询", "table", p.table, "sql", sqlQuery, "args", args)
	}

	db, err := p.manager.engine(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询表 '%s' 失败: %v", port.ErrQueryFailed, p.table, err)
	}
	defer rows.Close()

	returnedColumns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: 读取结果列失败: %v", port.ErrQueryFailed, err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		scanDest := make([]any, len(returnedColumns))
		scanDestPtrs := make([]any, len(returnedColumns))
		for i := range scanDest {
			scanDestPtrs[i] = &scanDest[i]
		}
		if errScan := rows.Scan(scanDestPtrs...); errScan != nil {
			slog.Warn("扫描行数据失败，跳过此行", "table", p.table, "error", errScan)
			continue
		}
		rowData := make(map[string]any, len(returnedColumns))
		for i, colName := range returnedColumns {
			rowData[colName] = encodeValue(scanDest[i])
		}
		results = append(results, rowData)
	}
	if errRows := rows.Err(); errRows != nil {
		return nil, fmt.Errorf("%w: 迭代表 '%s' 行数据时发生错误: %v", port.ErrQueryFailed, p.table, errRows)
	}

	return results, nil
}
