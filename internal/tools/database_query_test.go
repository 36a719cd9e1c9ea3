package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Rejections happen during SQL validation, before the tool touches its
// *gorm.DB, so a nil db is sufficient to exercise them.

func TestDatabaseQueryToolRejectsNonSelect(t *testing.T) {
	tool := NewDatabaseQueryTool(nil)

	args, _ := json.Marshal(DatabaseQueryInput{SQL: "DELETE FROM customers"})
	result, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestDatabaseQueryToolRejectsDisallowedTable(t *testing.T) {
	tool := NewDatabaseQueryTool(nil)

	args, _ := json.Marshal(DatabaseQueryInput{SQL: "SELECT * FROM pg_shadow"})
	result, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestDatabaseQueryToolRejectsMultipleStatements(t *testing.T) {
	tool := NewDatabaseQueryTool(nil)

	args, _ := json.Marshal(DatabaseQueryInput{SQL: "SELECT * FROM customers; SELECT * FROM customers"})
	result, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestDatabaseQueryToolRejectsSubquery(t *testing.T) {
	tool := NewDatabaseQueryTool(nil)

	args, _ := json.Marshal(DatabaseQueryInput{
		SQL: "SELECT id FROM customers WHERE id IN (SELECT customer_id FROM contact_strategies)",
	})
	result, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestDatabaseQueryToolRejectsMissingSQL(t *testing.T) {
	tool := NewDatabaseQueryTool(nil)

	args, _ := json.Marshal(DatabaseQueryInput{})
	result, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestDatabaseQueryToolAllowsWhitelistedJoin(t *testing.T) {
	v := newSQLSecurityValidator()
	_, err := v.validateAndSecure(
		"SELECT c.name, s.primary_method FROM customers c JOIN contact_strategies s ON c.id = s.customer_id LIMIT 5",
	)
	assert.NoError(t, err)
}
