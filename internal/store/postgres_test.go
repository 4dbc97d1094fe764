package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &PostgresStore{pool: mock, now: func() time.Time { return t0 }}
	return s, mock
}

func TestPostgresStore_GetCachedResults_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT fingerprint, kind, records, cached_at, expires_at FROM result_cache`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedResults(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedResults_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []model.ValidatedRecord{jobRecord("https://acme.com/jobs/1", "Data Engineer", "Austin, TX", 85, "")}
	recordsJSON, err := json.Marshal(records)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM result_cache\s+WHERE fingerprint = \$1 AND expires_at > now\(\)`).
		WithArgs("fp").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "kind", "records", "cached_at", "expires_at"}).
			AddRow("fp", "job", recordsJSON, now, now.Add(time.Hour)))

	got, err := s.GetCachedResults(context.Background(), "fp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.KindJob, got.Kind)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "https://acme.com/jobs/1", got.Records[0].Job.URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedResults_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM result_cache`).
		WithArgs("fp").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetCachedResults(context.Background(), "fp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get cached results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedResults_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)INSERT INTO result_cache .* ON CONFLICT \(fingerprint\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "fp", "contact", pgxmock.AnyArg(), now, now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedResults(context.Background(), model.CacheEntry{
		Fingerprint: "fp",
		Kind:        model.KindContact,
		CachedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM result_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpiredResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCachedResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM result_cache WHERE fingerprint = \$1`).
		WithArgs("fp").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteCachedResults(context.Background(), "fp"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertJobs_CollapsesDuplicateURLs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "jobs" \("url", .*\) VALUES \(\$1, .*\$15\) ON CONFLICT \("url"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertJobs(context.Background(), []model.ValidatedRecord{
		jobRecord("https://acme.com/jobs/1", "Data Engineer", "Austin, TX", 60, ""),
		jobRecord("https://acme.com/jobs/1", "Data Engineer", "Austin, TX", 80, ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertJobs_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.UpsertJobs(context.Background(), []model.ValidatedRecord{
		contactRecord("Acme", "Jane Doe", "CTO", "jane@acme.com", 70),
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContacts_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "contacts"`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := s.UpsertContacts(context.Background(), []model.ValidatedRecord{
		contactRecord("Acme", "Jane Doe", "CTO", "jane@acme.com", 70),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert contacts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryJobs_BuildsFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM jobs WHERE \(title ILIKE ANY\(\$1\) .*\) AND location ILIKE \$2 AND \(work_type = \$3 OR work_type = ''\) ORDER BY confidence DESC, fetched_at DESC LIMIT \$4`).
		WithArgs([]string{"%data%", "%engineer%"}, "%Austin%", "remote", 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"url", "title", "company", "location", "description", "salary", "salary_min", "salary_max",
			"posted_at", "work_type", "source", "source_id", "confidence", "fetched_at",
		}))

	got, err := s.QueryJobs(context.Background(), JobFilter{
		Keywords: []string{"Engineer", "data"},
		Location: "Austin",
		WorkType: model.WorkTypeRemote,
		Limit:    10,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryContacts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM contacts WHERE company_key = \$1 AND title ILIKE \$2 ORDER BY confidence DESC, fetched_at DESC LIMIT \$3`).
		WithArgs("acme corp", "%cto%", 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"name", "title", "email", "phone", "linkedin_url", "department", "company", "source_id", "confidence", "fetched_at",
		}).AddRow("Jane Doe", "CTO", "jane@acme.com", "", "", "Engineering", "Acme Corp", "website", 80, fetched))

	got, err := s.QueryContacts(context.Background(), ContactFilter{Company: "Acme  Corp", TitleHint: "cto"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.KindContact, got[0].Kind)
	assert.Equal(t, "Jane Doe", got[0].Contact.Name)
	assert.Equal(t, 80, got[0].RawConfidence)
	assert.Equal(t, "website", got[0].SourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
