// Package sqlite file: internal/adapter/datastore/sqlite/parser.go
package sqlite

import (
	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// 断言 *Parser 实现 port.TableParser 接口，编译期校验
var _ port.TableParser = (*Parser)(nil)

// Parser 是针对单张数据表的解析器，由 Manager.TableParser 构建。
type Parser struct {
	manager *Manager
	table   string
}

// RawFields 实现 port.TableParser 接口，返回表中每一列的元数据。
// 结果按列声明顺序排列，并在 Manager 中按表缓存。
func (p *Parser) RawFields(ctx context.Context) ([]domain.FieldMeta, error) {
	p.manager.mu.RLock()
	cached, found := p.manager.fieldCache[p.table]
	p.manager.mu.RUnlock()
	if found {
		return cached, nil
	}

	db, err := p.manager.engine(ctx)
	if err != nil {
		return nil, err
	}

	fields, err := listFields(ctx, db, p.table)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取表 '%s' 的列信息失败: %v", port.ErrConnectionFailed, p.table, err)
	}

	p.manager.mu.Lock()
	p.manager.fieldCache[p.table] = fields
	p.manager.mu.Unlock()

	return fields, nil
}

// listFields 通过 PRAGMA table_info 读取物理列并推断语义/分析类型。
func listFields(ctx context.Context, db *sql.DB, tableName string) ([]domain.FieldMeta, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("PRAGMA table_info for table %q 失败: %w", tableName, err)
	}
	defer rows.Close()

	var fields []domain.FieldMeta
	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notnull, &dfltValue, &pk); err != nil {
			slog.Warn("扫描列信息失败，跳过此列", "table", tableName, "error", err)
			continue
		}
		semantic, analytic := classifyDeclType(colType)
		fields = append(fields, domain.FieldMeta{
			FID:          colName,
			Name:         colName,
			SemanticType: semantic,
			AnalyticType: analytic,
		})
	}
	return fields, rows.Err()
}

// classifyDeclType 按声明类型推断字段的语义与分析类型。
// 与原端点一致，不做字符串→日期、数值→维度的推断。
func classifyDeclType(declType string) (semantic, analytic string) {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"),
		strings.Contains(t, "REAL"),
		strings.Contains(t, "FLOA"),
		strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"),
		strings.Contains(t, "DECIMAL"):
		return domain.SemanticQuantitative, domain.AnalyticMeasure
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return domain.SemanticTemporal, domain.AnalyticDimension
	default:
		return domain.SemanticNominal, domain.AnalyticDimension
	}
}
