package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmquery/config"
	"llmquery/models"
)

func TestLoadSchemaPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_schema.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE `t` (`id` int);"), 0o644))

	schema, err := LoadSchema(context.Background(), path, nil, "mysql", nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `t` (`id` int);", schema)
}

func TestLoadSchemaWithoutFileOrDatabase(t *testing.T) {
	schema, err := LoadSchema(context.Background(), filepath.Join(t.TempDir(), "missing.sql"), nil, "mysql", nil)
	require.NoError(t, err)
	assert.Empty(t, schema)
}

func TestLoadSchemaIntrospectsMySQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SHOW TABLES").WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_shop"}).AddRow("customers").AddRow("orders"),
	)
	mock.ExpectQuery("SHOW CREATE TABLE `customers`").WillReturnRows(
		sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("customers", "CREATE TABLE `customers` (`id` int)"),
	)
	mock.ExpectQuery("SHOW CREATE TABLE `orders`").WillReturnRows(
		sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("orders", "CREATE TABLE `orders` (`id` int)"),
	)

	schema, err := LoadSchema(context.Background(), "", db, "mysql", nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `customers` (`id` int);\n\nCREATE TABLE `orders` (`id` int);\n\n", schema)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSchemaUnsupportedDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = LoadSchema(context.Background(), "", db, "sqlserver", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide a schema file")
}

func openSQLite(t *testing.T) *QueryService {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "reporting.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER, total REAL)",
		"INSERT INTO customers (id, name) VALUES (1, 'Ada'), (2, 'Grace'), (3, 'Edsger'), (4, 'Barbara')",
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewQueryService(db, 1000, 0, nil)
}

func TestDumpSchemaSQLite(t *testing.T) {
	svc := openSQLite(t)

	dump, stats, err := DumpSchema(context.Background(), svc.db, "sqlite", "reporting", true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dump, "-- Database schema: reporting\n-- Generated: "))
	assert.Contains(t, dump, "-- Table: customers\nCREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);\n")
	assert.Contains(t, dump, "-- Sample rows:\n-- {\"id\":1,\"name\":\"Ada\"}\n")
	assert.NotContains(t, dump, "Barbara", "only three sample rows per table")
	assert.Equal(t, []models.TableStats{
		{Table: "customers", RowCount: 4},
		{Table: "orders", RowCount: 0},
	}, stats)

	plain, _, err := DumpSchema(context.Background(), svc.db, "sqlite", "reporting", false)
	require.NoError(t, err)
	assert.NotContains(t, plain, "Sample rows")
}

func TestLoadSchemaIntrospectsSQLite(t *testing.T) {
	svc := openSQLite(t)

	schema, err := LoadSchema(context.Background(), "", svc.db, "sqlite", nil)
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE customers")
	assert.Contains(t, schema, "CREATE TABLE orders")
}

func TestRunReadOnlyQuerySQLite(t *testing.T) {
	svc := openSQLite(t)

	result, err := svc.RunReadOnlyQuery(context.Background(), "SELECT name FROM customers ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, 4, result.RowCount)
	require.Len(t, result.Rows, 4)
	assert.Equal(t, []any{"Ada"}, result.Rows[0].Values)
	assert.True(t, svc.IsConnected(context.Background()))
}
