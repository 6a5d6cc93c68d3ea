package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_VerbAndTables(t *testing.T) {
	parsed := Parse("SELECT * FROM employees")
	assert.Equal(t, "SELECT", parsed.Verb)
	assert.Equal(t, []string{"employees"}, parsed.TableNames())
}

func TestParse_JoinWithAliases(t *testing.T) {
	parsed := Parse("SELECT e.first_name, d.department_name FROM employees e JOIN departments d ON e.department_id = d.department_id")

	assert.Equal(t, []string{"employees", "departments"}, parsed.TableNames())

	require.Len(t, parsed.Joins, 1)
	join := parsed.Joins[0]
	assert.Equal(t, "e", join.LeftQualifier)
	assert.Equal(t, "department_id", join.LeftColumn)
	assert.Equal(t, "d", join.RightQualifier)
	assert.Equal(t, "department_id", join.RightColumn)

	assert.Equal(t, "employees", parsed.ResolveQualifier("e"))
	assert.Equal(t, "departments", parsed.ResolveQualifier("d"))
	assert.Equal(t, "", parsed.ResolveQualifier("x"))
}

func TestParse_ExplicitAsAlias(t *testing.T) {
	parsed := Parse("SELECT c.city FROM customers AS c")
	require.Len(t, parsed.Tables, 1)
	assert.Equal(t, "customers", parsed.Tables[0].Name)
	assert.Equal(t, "c", parsed.Tables[0].Alias)
}

func TestParse_KeywordNotMistakenForAlias(t *testing.T) {
	parsed := Parse("SELECT * FROM employees WHERE salary > 50000")
	require.Len(t, parsed.Tables, 1)
	assert.Equal(t, "", parsed.Tables[0].Alias)
}

func TestParse_QualifiedColumns(t *testing.T) {
	parsed := Parse("SELECT e.salary FROM employees e WHERE e.status = 'Active' ORDER BY e.salary DESC")

	require.NotEmpty(t, parsed.Columns)
	seen := make(map[string]bool)
	for _, c := range parsed.Columns {
		seen[c.Qualifier+"."+c.Name] = true
	}
	assert.True(t, seen["e.salary"])
	assert.True(t, seen["e.status"])
}

func TestParse_ColumnsInsideLiteralsIgnored(t *testing.T) {
	parsed := Parse("SELECT * FROM employees e WHERE e.email = 'e.bogus'")
	for _, c := range parsed.Columns {
		assert.NotEqual(t, "bogus", c.Name)
	}
}

func TestParse_SchemaQualifiedTable(t *testing.T) {
	parsed := Parse("SELECT * FROM public.employees")
	assert.Equal(t, []string{"employees"}, parsed.TableNames())
}

func TestParse_LimitDetection(t *testing.T) {
	assert.True(t, Parse("SELECT * FROM employees LIMIT 10").HasLimit)
	assert.True(t, Parse("SELECT TOP (10) * FROM employees").HasLimit)
	assert.True(t, Parse("SELECT TOP 10 * FROM employees").HasLimit)
	assert.True(t, Parse("SELECT * FROM employees FETCH FIRST 5 ROWS ONLY").HasLimit)
	assert.False(t, Parse("SELECT * FROM employees").HasLimit)
}

func TestParse_DuplicateTablesDeduplicated(t *testing.T) {
	parsed := Parse("SELECT * FROM orders o JOIN order_items oi ON o.order_id = oi.order_id WHERE o.order_id IN (SELECT oi.order_id FROM order_items oi)")
	assert.Equal(t, []string{"orders", "order_items"}, parsed.TableNames())
}

func TestParse_CTENamesAreNotTables(t *testing.T) {
	parsed := Parse("WITH recent AS (SELECT o.id FROM orders o), ranked AS (SELECT * FROM recent) SELECT * FROM ranked")
	assert.Equal(t, "WITH", parsed.Verb)
	assert.Equal(t, []string{"orders"}, parsed.TableNames())
}

func TestParse_WriteVerbs(t *testing.T) {
	assert.Equal(t, "DROP", Parse("DROP TABLE employees").Verb)
	assert.Equal(t, "DELETE", Parse("DELETE FROM employees").Verb)
	assert.Equal(t, "UPDATE", Parse("UPDATE employees SET salary = 0").Verb)
}
