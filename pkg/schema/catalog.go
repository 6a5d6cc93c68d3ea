package schema

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/apperrors"
)

// ColumnSpec describes a single column in the catalog.
type ColumnSpec struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPrimary  bool
}

// ForeignKeySpec describes a declared foreign key relationship.
type ForeignKeySpec struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// TableSpec describes a table with its columns and outgoing foreign keys.
type TableSpec struct {
	Name        string
	Columns     []ColumnSpec
	ForeignKeys []ForeignKeySpec

	columnIndex map[string]int
}

// joinEdge identifies one direction of an allowed join.
type joinEdge struct {
	leftTable, leftColumn   string
	rightTable, rightColumn string
}

// Catalog is an immutable snapshot of the database schema, loaded once at
// startup. All lookups are case-insensitive; Describe output is
// deterministic for a given snapshot.
type Catalog struct {
	tables     []TableSpec
	tableIndex map[string]int
	joins      map[joinEdge]bool
}

// JoinAllowlist supplements declared foreign keys with manually approved
// join pairs. Keys and values use "table.column" form.
type JoinAllowlist struct {
	Joins map[string]string `yaml:"joins"`
}

// Load builds a catalog from a live schema extractor. It fails rather than
// degrade: an unreachable database or a schema with zero tables is a
// startup error, not an empty catalog.
func Load(ctx context.Context, extractor datasource.SchemaExtractor, logger *zap.Logger) (*Catalog, error) {
	tables, err := extractor.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %v", apperrors.ErrSchemaLoad, err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: database contains no tables", apperrors.ErrSchemaLoad)
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	allFKs, err := extractor.GetForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing foreign keys: %v", apperrors.ErrSchemaLoad, err)
	}
	fksByTable := make(map[string][]datasource.ForeignKey)
	for _, fk := range allFKs {
		key := strings.ToLower(fk.Table)
		fksByTable[key] = append(fksByTable[key], fk)
	}

	catalog := &Catalog{
		tableIndex: make(map[string]int, len(tables)),
		joins:      make(map[joinEdge]bool),
	}

	for _, t := range tables {
		columns, err := extractor.GetColumns(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: columns for %s: %v", apperrors.ErrSchemaLoad, t.Name, err)
		}
		if len(columns) == 0 {
			return nil, fmt.Errorf("%w: table %s has no columns", apperrors.ErrSchemaLoad, t.Name)
		}

		fks := fksByTable[strings.ToLower(t.Name)]

		spec := TableSpec{
			Name:        strings.ToLower(t.Name),
			Columns:     make([]ColumnSpec, 0, len(columns)),
			ForeignKeys: make([]ForeignKeySpec, 0, len(fks)),
			columnIndex: make(map[string]int, len(columns)),
		}
		for _, c := range columns {
			spec.columnIndex[strings.ToLower(c.Name)] = len(spec.Columns)
			spec.Columns = append(spec.Columns, ColumnSpec{
				Name:       strings.ToLower(c.Name),
				DataType:   c.DataType,
				IsNullable: c.IsNullable,
				IsPrimary:  c.IsPrimary,
			})
		}
		for _, fk := range fks {
			spec.ForeignKeys = append(spec.ForeignKeys, ForeignKeySpec{
				Column:           strings.ToLower(fk.Column),
				ReferencedTable:  strings.ToLower(fk.ReferencedTable),
				ReferencedColumn: strings.ToLower(fk.ReferencedColumn),
			})
			catalog.addJoin(spec.Name, fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
		}

		catalog.tableIndex[spec.Name] = len(catalog.tables)
		catalog.tables = append(catalog.tables, spec)
	}

	if logger != nil {
		logger.Info("schema catalog loaded",
			zap.Int("tables", len(catalog.tables)),
			zap.Strings("table_names", catalog.TableNames()))
	}

	return catalog, nil
}

// NewCatalog builds a catalog directly from table specs, for tests and for
// callers that already hold a schema snapshot. Table and column names are
// normalized to lowercase.
func NewCatalog(tables []TableSpec) *Catalog {
	catalog := &Catalog{
		tableIndex: make(map[string]int, len(tables)),
		joins:      make(map[joinEdge]bool),
	}
	// Sort a copy; the caller's slice is not touched.
	sorted := make([]TableSpec, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})
	for _, t := range sorted {
		spec := TableSpec{
			Name:        strings.ToLower(t.Name),
			Columns:     make([]ColumnSpec, 0, len(t.Columns)),
			ForeignKeys: make([]ForeignKeySpec, 0, len(t.ForeignKeys)),
			columnIndex: make(map[string]int, len(t.Columns)),
		}
		for _, c := range t.Columns {
			spec.columnIndex[strings.ToLower(c.Name)] = len(spec.Columns)
			c.Name = strings.ToLower(c.Name)
			spec.Columns = append(spec.Columns, c)
		}
		for _, fk := range t.ForeignKeys {
			fk.Column = strings.ToLower(fk.Column)
			fk.ReferencedTable = strings.ToLower(fk.ReferencedTable)
			fk.ReferencedColumn = strings.ToLower(fk.ReferencedColumn)
			spec.ForeignKeys = append(spec.ForeignKeys, fk)
			catalog.addJoin(spec.Name, fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
		}
		catalog.tableIndex[spec.Name] = len(catalog.tables)
		catalog.tables = append(catalog.tables, spec)
	}
	return catalog
}

func (c *Catalog) addJoin(leftTable, leftColumn, rightTable, rightColumn string) {
	lt := strings.ToLower(leftTable)
	lc := strings.ToLower(leftColumn)
	rt := strings.ToLower(rightTable)
	rc := strings.ToLower(rightColumn)
	c.joins[joinEdge{lt, lc, rt, rc}] = true
	c.joins[joinEdge{rt, rc, lt, lc}] = true
}

// ApplyAllowlist registers additional join pairs beyond the declared
// foreign keys. Each endpoint must name a known table and column.
func (c *Catalog) ApplyAllowlist(allowlist *JoinAllowlist) error {
	if allowlist == nil {
		return nil
	}
	for left, right := range allowlist.Joins {
		lt, lc, err := splitQualified(left)
		if err != nil {
			return err
		}
		rt, rc, err := splitQualified(right)
		if err != nil {
			return err
		}
		if !c.HasColumn(lt, lc) {
			return fmt.Errorf("join allowlist references unknown column %s.%s", lt, lc)
		}
		if !c.HasColumn(rt, rc) {
			return fmt.Errorf("join allowlist references unknown column %s.%s", rt, rc)
		}
		c.addJoin(lt, lc, rt, rc)
	}
	return nil
}

// LoadAllowlist reads a join allowlist from a YAML file.
func LoadAllowlist(path string) (*JoinAllowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read join allowlist: %w", err)
	}
	var allowlist JoinAllowlist
	if err := yaml.Unmarshal(data, &allowlist); err != nil {
		return nil, fmt.Errorf("parse join allowlist: %w", err)
	}
	return &allowlist, nil
}

func splitQualified(ref string) (table, column string, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(ref)), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("join allowlist entry %q is not table.column", ref)
	}
	return parts[0], parts[1], nil
}

// HasTable reports whether the catalog contains the named table.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tableIndex[strings.ToLower(name)]
	return ok
}

// HasColumn reports whether the named table contains the named column.
func (c *Catalog) HasColumn(table, column string) bool {
	idx, ok := c.tableIndex[strings.ToLower(table)]
	if !ok {
		return false
	}
	_, ok = c.tables[idx].columnIndex[strings.ToLower(column)]
	return ok
}

// Table returns the TableSpec for the named table, if present.
func (c *Catalog) Table(name string) (*TableSpec, bool) {
	idx, ok := c.tableIndex[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return &c.tables[idx], true
}

// TableNames returns all table names in sorted order.
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.Name
	}
	return names
}

// Tables returns all table specs in sorted order.
func (c *Catalog) Tables() []TableSpec {
	return c.tables
}

// IsAllowedJoin reports whether joining left.col to right.col is backed by
// a declared foreign key (in either direction) or an allowlist entry.
func (c *Catalog) IsAllowedJoin(leftTable, leftColumn, rightTable, rightColumn string) bool {
	return c.joins[joinEdge{
		strings.ToLower(leftTable), strings.ToLower(leftColumn),
		strings.ToLower(rightTable), strings.ToLower(rightColumn),
	}]
}

// Describe renders the schema as prompt-ready text. Output is stable for a
// given catalog: tables sorted by name, columns in declaration order.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for i, t := range c.tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("Table: %s\n", t.Name))
		b.WriteString("Columns:\n")
		for _, col := range t.Columns {
			flags := ""
			if col.IsPrimary {
				flags += " [PK]"
			}
			if col.IsNullable {
				flags += " (nullable)"
			}
			b.WriteString(fmt.Sprintf("- %s (%s)%s\n", col.Name, col.DataType, flags))
		}
		if len(t.ForeignKeys) > 0 {
			b.WriteString("Foreign Keys:\n")
			fks := make([]ForeignKeySpec, len(t.ForeignKeys))
			copy(fks, t.ForeignKeys)
			sort.Slice(fks, func(i, j int) bool { return fks[i].Column < fks[j].Column })
			for _, fk := range fks {
				b.WriteString(fmt.Sprintf("- %s.%s references %s.%s\n",
					t.Name, fk.Column, fk.ReferencedTable, fk.ReferencedColumn))
			}
		}
	}
	return b.String()
}
