package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/db"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_cached_results":     `SELECT fingerprint, kind, records, cached_at, expires_at FROM result_cache WHERE fingerprint = $1 AND expires_at > now()`,
	"delete_cached_results":  `DELETE FROM result_cache WHERE fingerprint = $1`,
	"delete_expired_results": `DELETE FROM result_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS result_cache (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fingerprint TEXT NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	records     JSONB NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	url         TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	company     TEXT NOT NULL,
	location    TEXT NOT NULL,
	description TEXT NOT NULL,
	salary      TEXT NOT NULL DEFAULT '',
	salary_min  BIGINT NOT NULL DEFAULT 0,
	salary_max  BIGINT NOT NULL DEFAULT 0,
	posted_at   TIMESTAMPTZ,
	work_type   TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	source_id   TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contacts (
	company_key   TEXT NOT NULL,
	canonical_key TEXT NOT NULL,
	name          TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	linkedin_url  TEXT NOT NULL DEFAULT '',
	department    TEXT NOT NULL DEFAULT '',
	company       TEXT NOT NULL,
	source_id     TEXT NOT NULL,
	confidence    INTEGER NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (company_key, canonical_key)
);

CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_jobs_confidence ON jobs(confidence DESC, fetched_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Result cache ---

func (s *PostgresStore) GetCachedResults(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var kind string
	var recordsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint, kind, records, cached_at, expires_at FROM result_cache
		 WHERE fingerprint = $1 AND expires_at > now()`,
		fingerprint,
	).Scan(&e.Fingerprint, &kind, &recordsJSON, &e.CachedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached results")
	}
	e.Kind = model.RecordKind(kind)
	if err := json.Unmarshal(recordsJSON, &e.Records); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached records")
	}
	return &e, nil
}

func (s *PostgresStore) SetCachedResults(ctx context.Context, entry model.CacheEntry) error {
	recordsJSON, err := json.Marshal(entry.Records)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal records")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO result_cache (id, fingerprint, kind, records, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (fingerprint) DO UPDATE SET kind = $3, records = $4, cached_at = $5, expires_at = $6`,
		uuid.New().String(), entry.Fingerprint, string(entry.Kind), recordsJSON, entry.CachedAt, entry.ExpiresAt,
	)
	return eris.Wrap(err, "postgres: set cached results")
}

func (s *PostgresStore) DeleteCachedResults(ctx context.Context, fingerprint string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM result_cache WHERE fingerprint = $1`, fingerprint)
	return eris.Wrap(err, "postgres: delete cached results")
}

func (s *PostgresStore) DeleteExpiredResults(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM result_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired results")
	}
	return int(tag.RowsAffected()), nil
}

// --- Jobs index ---

var jobColumns = []string{
	"url", "title", "company", "location", "description", "salary", "salary_min", "salary_max",
	"posted_at", "work_type", "source", "source_id", "confidence", "fetched_at", "updated_at",
}

func (s *PostgresStore) UpsertJobs(ctx context.Context, records []model.ValidatedRecord) (int, error) {
	now := s.now().UTC()
	// One row per URL: ON CONFLICT cannot touch the same row twice in a statement.
	index := make(map[string]int)
	var rows [][]any
	for _, r := range records {
		if r.Kind != model.KindJob || r.Job == nil || r.Job.URL == "" {
			continue
		}
		j := r.Job
		row := []any{
			j.URL, j.Title, j.Company, j.Location, j.Description, j.Salary, j.SalaryMin, j.SalaryMax,
			j.PostedAt, string(j.WorkType), j.Source, r.SourceID, r.Confidence, r.FetchedAt, now,
		}
		if i, ok := index[j.URL]; ok {
			rows[i] = row
			continue
		}
		index[j.URL] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "jobs",
		Columns:      jobColumns,
		ConflictKeys: []string{"url"},
	}, rows); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert jobs")
	}
	return len(rows), nil
}

func (s *PostgresStore) QueryJobs(ctx context.Context, filter JobFilter) ([]model.Candidate, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	keywords := model.NormalizeKeywords(filter.Keywords)
	if len(keywords) > 0 {
		patterns := make([]string, len(keywords))
		for i, k := range keywords {
			patterns[i] = likePattern(k)
		}
		p := arg(patterns)
		where = append(where, fmt.Sprintf("(title ILIKE ANY(%s) OR company ILIKE ANY(%s) OR description ILIKE ANY(%s))", p, p, p))
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		where = append(where, "location ILIKE "+arg(likePattern(loc)))
	}
	if filter.WorkType != "" && filter.WorkType != model.WorkTypeAny {
		where = append(where, fmt.Sprintf("(work_type = %s OR work_type = '')", arg(string(filter.WorkType))))
	}

	q := `SELECT url, title, company, location, description, salary, salary_min, salary_max,
		 posted_at, work_type, source, source_id, confidence, fetched_at FROM jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY confidence DESC, fetched_at DESC LIMIT " + arg(queryLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query jobs")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var j model.Job
		var workType, sourceID string
		var conf int
		var fetched time.Time
		if err := rows.Scan(&j.URL, &j.Title, &j.Company, &j.Location, &j.Description, &j.Salary,
			&j.SalaryMin, &j.SalaryMax, &j.PostedAt, &workType, &j.Source, &sourceID, &conf, &fetched); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		j.WorkType = model.WorkType(workType)
		out = append(out, model.NewJobCandidate(sourceID, conf, fetched, j))
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

// --- Contacts index ---

var contactColumns = []string{
	"company_key", "canonical_key", "name", "title", "email", "phone", "linkedin_url",
	"department", "company", "source_id", "confidence", "fetched_at", "updated_at",
}

func (s *PostgresStore) UpsertContacts(ctx context.Context, records []model.ValidatedRecord) (int, error) {
	now := s.now().UTC()
	index := make(map[string]int)
	var rows [][]any
	for _, r := range records {
		key, ok := contactRowKey(r)
		if !ok {
			continue
		}
		c := r.Contact
		companyKey := CompanyKey(c.Company)
		row := []any{
			companyKey, key, c.Name, c.Title, c.Email, c.Phone, c.LinkedInURL,
			c.Department, c.Company, r.SourceID, r.Confidence, r.FetchedAt, now,
		}
		id := companyKey + "\x00" + key
		if i, ok := index[id]; ok {
			rows[i] = row
			continue
		}
		index[id] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "contacts",
		Columns:      contactColumns,
		ConflictKeys: []string{"company_key", "canonical_key"},
	}, rows); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert contacts")
	}
	return len(rows), nil
}

func (s *PostgresStore) QueryContacts(ctx context.Context, filter ContactFilter) ([]model.Candidate, error) {
	q := `SELECT name, title, email, phone, linkedin_url, department, company, source_id, confidence, fetched_at
		 FROM contacts WHERE company_key = $1`
	args := []any{CompanyKey(filter.Company)}
	if hint := strings.TrimSpace(filter.TitleHint); hint != "" {
		args = append(args, likePattern(hint))
		q += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	args = append(args, queryLimit(filter.Limit))
	q += fmt.Sprintf(" ORDER BY confidence DESC, fetched_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query contacts")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Contact
		var sourceID string
		var conf int
		var fetched time.Time
		if err := rows.Scan(&c.Name, &c.Title, &c.Email, &c.Phone, &c.LinkedInURL, &c.Department,
			&c.Company, &sourceID, &conf, &fetched); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		out = append(out, model.NewContactCandidate(sourceID, conf, fetched, c))
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate contacts")
}
