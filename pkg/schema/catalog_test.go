package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/apperrors"
)

// mockExtractor implements datasource.SchemaExtractor with function fields.
type mockExtractor struct {
	GetTablesFunc      func(ctx context.Context) ([]datasource.Table, error)
	GetColumnsFunc     func(ctx context.Context, table string) ([]datasource.Column, error)
	GetForeignKeysFunc func(ctx context.Context) ([]datasource.ForeignKey, error)
}

func (m *mockExtractor) GetTables(ctx context.Context) ([]datasource.Table, error) {
	return m.GetTablesFunc(ctx)
}

func (m *mockExtractor) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	return m.GetColumnsFunc(ctx, table)
}

func (m *mockExtractor) GetForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	return m.GetForeignKeysFunc(ctx)
}

func (m *mockExtractor) Close() error { return nil }

func retailExtractor() *mockExtractor {
	return &mockExtractor{
		GetTablesFunc: func(ctx context.Context) ([]datasource.Table, error) {
			return []datasource.Table{
				{Schema: "public", Name: "employees"},
				{Schema: "public", Name: "departments"},
			}, nil
		},
		GetColumnsFunc: func(ctx context.Context, table string) ([]datasource.Column, error) {
			switch table {
			case "employees":
				return []datasource.Column{
					{Name: "employee_id", DataType: "integer", IsPrimary: true},
					{Name: "status", DataType: "varchar"},
					{Name: "department_id", DataType: "integer", IsNullable: true},
				}, nil
			case "departments":
				return []datasource.Column{
					{Name: "department_id", DataType: "integer", IsPrimary: true},
					{Name: "department_name", DataType: "varchar"},
				}, nil
			}
			return nil, nil
		},
		GetForeignKeysFunc: func(ctx context.Context) ([]datasource.ForeignKey, error) {
			return []datasource.ForeignKey{
				{Table: "employees", Column: "department_id", ReferencedTable: "departments", ReferencedColumn: "department_id"},
			}, nil
		},
	}
}

func TestLoad_BuildsCatalog(t *testing.T) {
	catalog, err := Load(context.Background(), retailExtractor(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"departments", "employees"}, catalog.TableNames())
	assert.True(t, catalog.HasTable("employees"))
	assert.True(t, catalog.HasTable("EMPLOYEES"))
	assert.False(t, catalog.HasTable("payroll"))
	assert.True(t, catalog.HasColumn("employees", "status"))
	assert.False(t, catalog.HasColumn("employees", "bonus"))
	assert.True(t, catalog.IsAllowedJoin("employees", "department_id", "departments", "department_id"))
	assert.True(t, catalog.IsAllowedJoin("departments", "department_id", "employees", "department_id"))
	assert.False(t, catalog.IsAllowedJoin("employees", "status", "departments", "department_name"))
}

func TestLoad_FailsOnUnreachableDatabase(t *testing.T) {
	extractor := retailExtractor()
	extractor.GetTablesFunc = func(ctx context.Context) ([]datasource.Table, error) {
		return nil, errors.New("connection refused")
	}

	_, err := Load(context.Background(), extractor, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrSchemaLoad)
}

func TestLoad_FailsOnZeroTables(t *testing.T) {
	extractor := retailExtractor()
	extractor.GetTablesFunc = func(ctx context.Context) ([]datasource.Table, error) {
		return nil, nil
	}

	_, err := Load(context.Background(), extractor, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrSchemaLoad)
}

func TestDescribe_DeterministicAcrossCalls(t *testing.T) {
	catalog, err := Load(context.Background(), retailExtractor(), zap.NewNop())
	require.NoError(t, err)

	first := catalog.Describe()
	second := catalog.Describe()
	assert.Equal(t, first, second)

	assert.Contains(t, first, "Table: departments")
	assert.Contains(t, first, "Table: employees")
	assert.Contains(t, first, "- employee_id (integer) [PK]")
	assert.Contains(t, first, "employees.department_id references departments.department_id")
}

func TestNewCatalog_DoesNotReorderInput(t *testing.T) {
	tables := []TableSpec{
		{Name: "orders", Columns: []ColumnSpec{{Name: "id"}}},
		{Name: "customers", Columns: []ColumnSpec{{Name: "id"}}},
		{Name: "departments", Columns: []ColumnSpec{{Name: "id"}}},
	}

	catalog := NewCatalog(tables)

	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, "customers", tables[1].Name)
	assert.Equal(t, "departments", tables[2].Name)
	assert.Equal(t, []string{"customers", "departments", "orders"}, catalog.TableNames())
}

func TestApplyAllowlist_RejectsUnknownColumn(t *testing.T) {
	catalog, err := Load(context.Background(), retailExtractor(), zap.NewNop())
	require.NoError(t, err)

	err = catalog.ApplyAllowlist(&JoinAllowlist{
		Joins: map[string]string{"employees.bonus": "departments.department_id"},
	})
	assert.Error(t, err)
}

func TestApplyAllowlist_RejectsMalformedEntry(t *testing.T) {
	catalog, err := Load(context.Background(), retailExtractor(), zap.NewNop())
	require.NoError(t, err)

	err = catalog.ApplyAllowlist(&JoinAllowlist{
		Joins: map[string]string{"employees": "departments.department_id"},
	})
	assert.Error(t, err)
}

func TestApplyAllowlist_AddsJoin(t *testing.T) {
	catalog, err := Load(context.Background(), retailExtractor(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, catalog.ApplyAllowlist(&JoinAllowlist{
		Joins: map[string]string{"employees.status": "departments.department_name"},
	}))
	assert.True(t, catalog.IsAllowedJoin("employees", "status", "departments", "department_name"))
	assert.True(t, catalog.IsAllowedJoin("departments", "department_name", "employees", "status"))
}
