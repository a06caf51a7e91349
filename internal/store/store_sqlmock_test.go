package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// newMockStore builds a Store directly around a sqlmock *sql.DB,
// bypassing OpenDB so no migrations run and the mock only has to answer
// the queries the test itself issues.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: db}, mock
}

func TestStore_CreateExecution_WrapsDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO executions")).
		WillReturnError(errors.New("disk I/O error"))

	err := s.CreateExecution(context.Background(), sampleRecord("exec-1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "inserting execution exec-1")
}

func TestStore_GetExecution_WrapsDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM executions WHERE execution_id = ?")).
		WithArgs("exec-1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetExecution(context.Background(), "exec-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetching execution exec-1")
}

func TestStore_UpdateExecution_WrapsDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE executions SET")).
		WillReturnError(errors.New("constraint violation"))

	err := s.UpdateExecution(context.Background(), sampleRecord("exec-1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "updating execution exec-1")
}

func TestStore_GetStatistics_WrapsDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, verdict, risk_level, started_at, finished_at FROM executions")).
		WillReturnError(errors.New("no such table"))

	_, err := s.GetStatistics(context.Background())
	require.Error(t, err)
}
