package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"llmquery/apperrors"
	"llmquery/config"
	"llmquery/models"
	"llmquery/observability"
)

// Open opens a connection pool for the configured driver. The pool is not
// pinged; an unreachable database surfaces on the first query.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		driverName string
		dsn        string
	)
	switch cfg.Driver {
	case "mysql":
		driverName, dsn = "mysql", buildMySQLDSN(cfg)
	case "sqlserver":
		driverName, dsn = "sqlserver", buildConnectionString(cfg)
	case "sqlite":
		driverName, dsn = "sqlite", cfg.Path
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func buildMySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	if cfg.QueryTimeout > 0 {
		mc.ReadTimeout = cfg.QueryTimeout
	}
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN()
}

func buildConnectionString(cfg config.DatabaseConfig) string {
	port := cfg.Port
	// db.port defaults to the MySQL port.
	if port == "" || port == "3306" {
		port = "1433"
	}
	connStr := fmt.Sprintf("server=%s;port=%s;database=%s",
		cfg.Host, port, cfg.Name)

	if cfg.User != "" {
		connStr += fmt.Sprintf(";user id=%s;password=%s", cfg.User, cfg.Password)
	} else {
		connStr += ";trusted_connection=true"
	}

	if cfg.Encrypt {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	} else {
		connStr += ";encrypt=false"
	}

	return connStr
}

// QueryService runs read-only statements and shapes their rows for the API.
type QueryService struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
	logger  *slog.Logger
}

func NewQueryService(db *sql.DB, maxRows int, timeout time.Duration, logger *slog.Logger) *QueryService {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{db: db, maxRows: maxRows, timeout: timeout, logger: logger}
}

func (s *QueryService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *QueryService) IsConnected(ctx context.Context) bool {
	if s.db == nil {
		return false
	}
	return s.db.PingContext(ctx) == nil
}

// RunReadOnlyQuery executes query and returns at most maxRows rows. RowCount
// is the number of rows the database produced, so a caller can tell how much
// was cut off. The statement must already have passed validation.
func (s *QueryService) RunReadOnlyQuery(ctx context.Context, query string) (result *models.QueryResult, err error) {
	if s.db == nil {
		return nil, apperrors.New(apperrors.ExecutionError, "database connection is not configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		observability.ObserveQuery(err, time.Since(start), result != nil && result.Truncated)
	}()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, executionError(ctx, err)
	}
	defer rows.Close()

	result, err = scanRows(rows, s.maxRows)
	if err != nil {
		return nil, executionError(ctx, err)
	}

	if result.Truncated {
		s.logger.InfoContext(ctx, "query result truncated", "row_count", result.RowCount, "max_rows", s.maxRows)
	}
	return result, nil
}

func executionError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ExecutionError, "query timed out", err)
	}
	return apperrors.Wrap(apperrors.ExecutionError, "database error", err)
}

// scanRows reads every row but keeps only the first limit. A limit of zero or
// less keeps everything.
func scanRows(rows *sql.Rows, limit int) (*models.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{
		Columns: columns,
		Rows:    []models.Row{},
	}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		result.RowCount++
		if limit > 0 && len(result.Rows) >= limit {
			continue
		}

		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, models.Row{Columns: columns, Values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.Truncated = limit > 0 && result.RowCount > limit
	return result, nil
}
