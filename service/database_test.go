package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmquery/apperrors"
	"llmquery/config"
)

func newMockQueryService(t *testing.T, maxRows int, timeout time.Duration) (*QueryService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewQueryService(db, maxRows, timeout, nil), mock
}

func TestRunReadOnlyQueryTruncatesAndCounts(t *testing.T) {
	svc, mock := newMockQueryService(t, 2, time.Second)
	mock.ExpectQuery("SELECT id, name FROM customers").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("Ada")).
			AddRow(int64(2), nil).
			AddRow(int64(3), "Grace"),
	)

	result, err := svc.RunReadOnlyQuery(context.Background(), "SELECT id, name FROM customers")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, result.Columns)
	assert.Equal(t, 3, result.RowCount)
	assert.True(t, result.Truncated)
	require.Len(t, result.Rows, 2)

	name, ok := result.Rows[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", name)

	name, ok = result.Rows[1].Get("name")
	require.True(t, ok)
	assert.Nil(t, name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunReadOnlyQueryKeepsColumnOrderInJSON(t *testing.T) {
	svc, mock := newMockQueryService(t, 10, time.Second)
	mock.ExpectQuery("SELECT z, a FROM t").WillReturnRows(
		sqlmock.NewRows([]string{"z", "a"}).AddRow(int64(1), "x"),
	)

	result, err := svc.RunReadOnlyQuery(context.Background(), "SELECT z, a FROM t")
	require.NoError(t, err)
	assert.False(t, result.Truncated)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t, `{"columns":["z","a"],"results":[{"z":1,"a":"x"}],"row_count":1,"limited":false}`, string(data))
}

func TestRunReadOnlyQueryEmptyResultEncodesAsArray(t *testing.T) {
	svc, mock := newMockQueryService(t, 10, time.Second)
	mock.ExpectQuery("SELECT id FROM t").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := svc.RunReadOnlyQuery(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)

	data, err := json.Marshal(result.Rows)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestRunReadOnlyQueryDatabaseError(t *testing.T) {
	svc, mock := newMockQueryService(t, 10, time.Second)
	mock.ExpectQuery("SELECT nope FROM t").WillReturnError(errors.New("Unknown column 'nope'"))

	_, err := svc.RunReadOnlyQuery(context.Background(), "SELECT nope FROM t")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExecutionError, apperrors.KindOf(err))
	assert.Equal(t, "database error: Unknown column 'nope'", apperrors.Message(err))
}

func TestRunReadOnlyQueryTimeout(t *testing.T) {
	svc, mock := newMockQueryService(t, 10, 20*time.Millisecond)
	mock.ExpectQuery("SELECT SLEEP(1)").
		WillDelayFor(500 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(0)))

	_, err := svc.RunReadOnlyQuery(context.Background(), "SELECT SLEEP(1)")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExecutionError, apperrors.KindOf(err))
	assert.True(t, strings.HasPrefix(apperrors.Message(err), "query timed out"))
}

func TestRunReadOnlyQueryWithoutDatabase(t *testing.T) {
	svc := NewQueryService(nil, 10, time.Second, nil)
	_, err := svc.RunReadOnlyQuery(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExecutionError, apperrors.KindOf(err))
	assert.False(t, svc.IsConnected(context.Background()))
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn := buildMySQLDSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     "3307",
		Name:     "shop",
		User:     "reader",
		Password: "secret",
		Charset:  "utf8mb4",
	})
	assert.True(t, strings.HasPrefix(dsn, "reader:secret@tcp(db.internal:3307)/shop?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestBuildConnectionString(t *testing.T) {
	got := buildConnectionString(config.DatabaseConfig{
		Host: "mssql", Port: "3306", Name: "shop", User: "sa", Password: "pw", Encrypt: true,
	})
	assert.Equal(t, "server=mssql;port=1433;database=shop;user id=sa;password=pw;encrypt=true;TrustServerCertificate=true", got)

	got = buildConnectionString(config.DatabaseConfig{Host: "mssql", Port: "1444", Name: "shop"})
	assert.Equal(t, "server=mssql;port=1444;database=shop;trusted_connection=true;encrypt=false", got)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}
