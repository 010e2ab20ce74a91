// file: internal/service/main_test.go
package service

import (
	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// ============================================================================
//  共享测试辅助工具 (Shared Test Helpers & Mocks)
// ============================================================================

// mockTableParser 是 port.TableParser 接口的测试替身
type mockTableParser struct {
	RawFieldsFunc      func(ctx context.Context) ([]domain.FieldMeta, error)
	QueryByPayloadFunc func(ctx context.Context, payload *domain.Payload) ([]map[string]any, error)
}

func (m *mockTableParser) RawFields(ctx context.Context) ([]domain.FieldMeta, error) {
	if m.RawFieldsFunc != nil {
		return m.RawFieldsFunc(ctx)
	}
	return nil, nil
}

func (m *mockTableParser) QueryByPayload(ctx context.Context, payload *domain.Payload) ([]map[string]any, error) {
	if m.QueryByPayloadFunc != nil {
		return m.QueryByPayloadFunc(ctx, payload)
	}
	return nil, nil
}

// mockDatastore 是 port.Datastore 接口的测试替身
type mockDatastore struct {
	TableParserFunc func(ctx context.Context, tableName string) (port.TableParser, error)
	HealthCheckFunc func(ctx context.Context) error
}

func (m *mockDatastore) TableParser(ctx context.Context, tableName string) (port.TableParser, error) {
	if m.TableParserFunc != nil {
		return m.TableParserFunc(ctx, tableName)
	}
	return &mockTableParser{}, nil
}

func (m *mockDatastore) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return nil
}

func (m *mockDatastore) Type() string { return "mock" }

// mockCatalog 是 port.Catalog 接口的测试替身
type mockCatalog struct {
	ResourceShowFunc func(ctx context.Context, resourceID string) (*domain.Resource, error)
	FieldInfosFunc   func(ctx context.Context, resourceID string) ([]domain.FieldInfo, error)
	CheckAccessFunc  func(ctx context.Context, identity *domain.Identity, resourceID string) error
}

func (m *mockCatalog) ResourceShow(ctx context.Context, resourceID string) (*domain.Resource, error) {
	if m.ResourceShowFunc != nil {
		return m.ResourceShowFunc(ctx, resourceID)
	}
	return nil, port.ErrResourceNotFound
}

func (m *mockCatalog) FieldInfos(ctx context.Context, resourceID string) ([]domain.FieldInfo, error) {
	if m.FieldInfosFunc != nil {
		return m.FieldInfosFunc(ctx, resourceID)
	}
	return nil, nil
}

func (m *mockCatalog) CheckAccess(ctx context.Context, identity *domain.Identity, resourceID string) error {
	if m.CheckAccessFunc != nil {
		return m.CheckAccessFunc(ctx, identity, resourceID)
	}
	return nil
}

// createUserDB 创建一个带用户表的临时数据库
func createUserDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitUserTable(db))
	return db
}
