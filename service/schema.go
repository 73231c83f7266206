package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"llmquery/models"
)

const sampleRowsPerTable = 3

// LoadSchema returns the DDL document shown to the model. A schema file wins;
// without one the live database is introspected. An empty string with a nil
// error means no schema could be found.
func LoadSchema(ctx context.Context, path string, db *sql.DB, driver string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			logger.Info("schema loaded from file", "path", path, "bytes", len(data))
			return string(data), nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("failed to read schema file: %w", err)
		}
	}

	if db == nil {
		return "", nil
	}

	tables, err := listTables(ctx, db, driver)
	if err != nil {
		return "", err
	}

	var schemaBuilder strings.Builder
	for _, table := range tables {
		ddl, err := createStatement(ctx, db, driver, table)
		if err != nil {
			return "", err
		}
		schemaBuilder.WriteString(ddl)
		schemaBuilder.WriteString(";\n\n")
	}
	logger.Info("schema introspected from database", "driver", driver, "tables", len(tables))
	return schemaBuilder.String(), nil
}

// DumpSchema renders a schema file for the database with a header, and with
// up to three sample rows per table as JSON comments when withSamples is set.
// It also returns the row count of every table.
func DumpSchema(ctx context.Context, db *sql.DB, driver, dbName string, withSamples bool) (string, []models.TableStats, error) {
	tables, err := listTables(ctx, db, driver)
	if err != nil {
		return "", nil, err
	}

	var schemaBuilder strings.Builder
	schemaBuilder.WriteString(fmt.Sprintf("-- Database schema: %s\n", dbName))
	schemaBuilder.WriteString(fmt.Sprintf("-- Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	stats := make([]models.TableStats, 0, len(tables))
	for _, table := range tables {
		ddl, err := createStatement(ctx, db, driver, table)
		if err != nil {
			return "", nil, err
		}
		schemaBuilder.WriteString(fmt.Sprintf("-- Table: %s\n", table))
		schemaBuilder.WriteString(ddl)
		schemaBuilder.WriteString(";\n\n")

		if withSamples {
			if err := writeSampleRows(ctx, db, driver, table, &schemaBuilder); err != nil {
				return "", nil, err
			}
		}

		var count int64
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(driver, table))
		if err := db.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
			return "", nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
		stats = append(stats, models.TableStats{Table: table, RowCount: count})
	}

	return schemaBuilder.String(), stats, nil
}

func writeSampleRows(ctx context.Context, db *sql.DB, driver, table string, w *strings.Builder) error {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(driver, table), sampleRowsPerTable)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to sample %s: %w", table, err)
	}
	defer rows.Close()

	sample, err := scanRows(rows, sampleRowsPerTable)
	if err != nil {
		return fmt.Errorf("failed to sample %s: %w", table, err)
	}
	if len(sample.Rows) == 0 {
		return nil
	}

	w.WriteString("-- Sample rows:\n")
	for _, row := range sample.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode sample row of %s: %w", table, err)
		}
		w.WriteString("-- ")
		w.Write(data)
		w.WriteString("\n")
	}
	w.WriteString("\n")
	return nil
}

func listTables(ctx context.Context, db *sql.DB, driver string) ([]string, error) {
	var query string
	switch driver {
	case "mysql":
		query = "SHOW TABLES"
	case "sqlite":
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	default:
		return nil, fmt.Errorf("schema introspection is not supported for driver %q, provide a schema file", driver)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func createStatement(ctx context.Context, db *sql.DB, driver, table string) (string, error) {
	var ddl string
	switch driver {
	case "mysql":
		var name string
		if err := db.QueryRowContext(ctx, "SHOW CREATE TABLE "+quoteIdent(driver, table)).Scan(&name, &ddl); err != nil {
			return "", fmt.Errorf("failed to read definition of %s: %w", table, err)
		}
	case "sqlite":
		if err := db.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl); err != nil {
			return "", fmt.Errorf("failed to read definition of %s: %w", table, err)
		}
	default:
		return "", fmt.Errorf("schema introspection is not supported for driver %q", driver)
	}
	return ddl, nil
}

func quoteIdent(driver, name string) string {
	switch driver {
	case "mysql":
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
