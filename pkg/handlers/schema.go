package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/schema"
)

// SchemaResponse is the catalog snapshot returned by GET /api/schema.
type SchemaResponse struct {
	Tables []SchemaTable `json:"tables"`
}

// SchemaTable is one table in the snapshot.
type SchemaTable struct {
	Name        string             `json:"name"`
	Columns     []SchemaColumn     `json:"columns"`
	ForeignKeys []SchemaForeignKey `json:"foreign_keys,omitempty"`
}

// SchemaColumn is one column in the snapshot.
type SchemaColumn struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// SchemaForeignKey is one declared relationship in the snapshot.
type SchemaForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// SchemaHandler exposes the loaded catalog for inspection.
type SchemaHandler struct {
	catalog *schema.Catalog
	logger  *zap.Logger
}

// NewSchemaHandler creates a SchemaHandler.
func NewSchemaHandler(catalog *schema.Catalog, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.Get)
}

// Get handles GET /api/schema requests. Output mirrors Describe ordering:
// tables sorted by name, columns in declaration order.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	tables := h.catalog.Tables()
	response := SchemaResponse{Tables: make([]SchemaTable, 0, len(tables))}

	for _, t := range tables {
		st := SchemaTable{Name: t.Name}
		for _, c := range t.Columns {
			st.Columns = append(st.Columns, SchemaColumn{
				Name:       c.Name,
				DataType:   c.DataType,
				IsNullable: c.IsNullable,
				IsPrimary:  c.IsPrimary,
			})
		}
		for _, fk := range t.ForeignKeys {
			st.ForeignKeys = append(st.ForeignKeys, SchemaForeignKey{
				Column:           fk.Column,
				ReferencedTable:  fk.ReferencedTable,
				ReferencedColumn: fk.ReferencedColumn,
			})
		}
		response.Tables = append(response.Tables, st)
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}
