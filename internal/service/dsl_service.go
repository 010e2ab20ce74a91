// Package service file: internal/service/dsl_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

// columnsToExclude 是在字段与行数据中统一剔除的内部列。
var columnsToExclude = []string{"_id", "id", "_full_text"}

// DSLService 封装 DSL 相关的全部操作：
// 表元数据检索、字段标签解析与按负载的数据查询。
type DSLService struct {
	datastore port.Datastore
	catalog   port.Catalog
	exclude   map[string]struct{}

	// labelCache 缓存每个资源的字段标签映射，避免每次请求都查数据字典
	labelCache *cache.Cache
}

// NewDSLService 创建 DSL 服务实例。
func NewDSLService(ds port.Datastore, cat port.Catalog) *DSLService {
	exclude := make(map[string]struct{}, len(columnsToExclude))
	for _, c := range columnsToExclude {
		exclude[c] = struct{}{}
	}
	return &DSLService{
		datastore:  ds,
		catalog:    cat,
		exclude:    exclude,
		labelCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// nameTitleMap 返回字段 ID → 展示标签的映射。
// 字典查询失败只记录日志并返回空映射，绝不让元数据调用因此失败。
func (s *DSLService) nameTitleMap(ctx context.Context, resourceID string) map[string]string {
	if cached, found := s.labelCache.Get(resourceID); found {
		if m, ok := cached.(map[string]string); ok {
			return m
		}
	}

	infos, err := s.catalog.FieldInfos(ctx, resourceID)
	if err != nil {
		slog.Error("获取字段标签映射失败", "resource_id", resourceID, "error", err)
		return map[string]string{}
	}

	nameMap := make(map[string]string, len(infos))
	for _, info := range infos {
		if _, excluded := s.exclude[info.FieldID]; excluded {
			continue
		}
		label := info.Label
		if label == "" {
			label = info.FieldID
		}
		nameMap[info.FieldID] = label
	}

	s.labelCache.Set(resourceID, nameMap, cache.DefaultExpiration)
	return nameMap
}

// tableMetadata 组合解析器的物理字段与数据字典标签，
// 剔除内部列，可选按标签排序。
func (s *DSLService) tableMetadata(ctx context.Context, resourceID string, sortFields bool) ([]domain.FieldMeta, error) {
	parser, err := s.datastore.TableParser(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	var (
		rawFields []domain.FieldMeta
		nameMap   map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var errFields error
		rawFields, errFields = parser.RawFields(gctx)
		return errFields
	})
	g.Go(func() error {
		nameMap = s.nameTitleMap(gctx, resourceID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	filtered := make([]domain.FieldMeta, 0, len(rawFields))
	for _, field := range rawFields {
		if _, excluded := s.exclude[field.FID]; excluded {
			continue
		}
		if label, ok := nameMap[field.FID]; ok {
			field.Name = label
		} else {
			field.Name = field.FID
		}
		filtered = append(filtered, field)
	}

	if sortFields {
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].Name < filtered[j].Name
		})
	}
	return filtered, nil
}

// ShowMetadata 返回资源对应数据表的 schema 描述信封。
// 任何内部失败都转换为 success:false 信封，不向调用方抛出。
func (s *DSLService) ShowMetadata(ctx context.Context, resourceID string, sortFields bool) *domain.MetadataEnvelope {
	fieldsMeta, err := s.tableMetadata(ctx, resourceID, sortFields)
	if err != nil {
		slog.Error("获取表元数据失败", "resource_id", resourceID, "error", err)
		return &domain.MetadataEnvelope{
			Success:    false,
			Schema:     []domain.FieldMeta{},
			Name:       resourceID,
			ResourceID: resourceID,
			Message:    fmt.Sprintf("Error fetching metadata: %v", err),
		}
	}
	if fieldsMeta == nil {
		fieldsMeta = []domain.FieldMeta{}
	}

	return &domain.MetadataEnvelope{
		Success:    true,
		Schema:     fieldsMeta,
		Name:       resourceID,
		ResourceID: resourceID,
		Message:    "",
	}
}

// QueryData 使用 DSL 负载查询资源数据并返回结果信封。
// 行数据中的内部列被统一剔除；查询失败与意外错误都落在
// success:false 信封里，绝不向上传播。
func (s *DSLService) QueryData(ctx context.Context, resourceID string, payload *domain.Payload) *domain.QueryEnvelope {
	parser, err := s.datastore.TableParser(ctx, resourceID)
	if err != nil {
		slog.Error("构建表解析器失败", "resource_id", resourceID, "error", err)
		return &domain.QueryEnvelope{
			Success: false,
			Data:    nil,
			Message: fmt.Sprintf("Query execution failed: %v", err),
		}
	}

	rows, err := parser.QueryByPayload(ctx, payload)
	if err != nil {
		slog.Error("执行 DSL 查询失败", "resource_id", resourceID, "error", err)
		return &domain.QueryEnvelope{
			Success: false,
			Data:    nil,
			Message: fmt.Sprintf("Query execution failed: %v", err),
		}
	}

	filtered := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		cleanRow := make(map[string]any, len(row))
		for key, value := range row {
			if _, excluded := s.exclude[key]; excluded {
				continue
			}
			cleanRow[key] = value
		}
		filtered = append(filtered, cleanRow)
	}

	return &domain.QueryEnvelope{
		Success: true,
		Data:    filtered,
		Message: "",
	}
}

// InvalidateLabels 手动使指定资源的标签缓存失效。
func (s *DSLService) InvalidateLabels(resourceID string) {
	s.labelCache.Delete(resourceID)
}
