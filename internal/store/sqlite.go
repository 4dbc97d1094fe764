package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS result_cache (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	records     TEXT NOT NULL,
	cached_at   INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	company     TEXT NOT NULL,
	location    TEXT NOT NULL,
	description TEXT NOT NULL,
	salary      TEXT NOT NULL DEFAULT '',
	salary_min  INTEGER NOT NULL DEFAULT 0,
	salary_max  INTEGER NOT NULL DEFAULT 0,
	posted_at   INTEGER,
	work_type   TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	source_id   TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	fetched_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id            TEXT PRIMARY KEY,
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
	fetched_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	UNIQUE (company_key, canonical_key)
);

CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_jobs_location ON jobs(location);
CREATE INDEX IF NOT EXISTS idx_jobs_confidence ON jobs(confidence DESC, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_contacts_company_key ON contacts(company_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Result cache ---

func (s *SQLiteStore) GetCachedResults(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var recordsJSON string
	var cachedAt, expiresAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, kind, records, cached_at, expires_at FROM result_cache
		 WHERE fingerprint = ? AND expires_at > ?`,
		fingerprint, s.now().UnixMilli(),
	).Scan(&e.Fingerprint, &e.Kind, &recordsJSON, &cachedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached results")
	}
	if err := json.Unmarshal([]byte(recordsJSON), &e.Records); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached records")
	}
	e.CachedAt = time.UnixMilli(cachedAt).UTC()
	e.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &e, nil
}

func (s *SQLiteStore) SetCachedResults(ctx context.Context, entry model.CacheEntry) error {
	recordsJSON, err := json.Marshal(entry.Records)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal records")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO result_cache (id, fingerprint, kind, records, cached_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO UPDATE SET kind = excluded.kind, records = excluded.records,
		 cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), entry.Fingerprint, string(entry.Kind), string(recordsJSON),
		entry.CachedAt.UnixMilli(), entry.ExpiresAt.UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: set cached results")
}

func (s *SQLiteStore) DeleteCachedResults(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM result_cache WHERE fingerprint = ?`, fingerprint)
	return eris.Wrap(err, "sqlite: delete cached results")
}

func (s *SQLiteStore) DeleteExpiredResults(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM result_cache WHERE expires_at <= ?`, s.now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired results")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// --- Jobs index ---

func (s *SQLiteStore) UpsertJobs(ctx context.Context, records []model.ValidatedRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert jobs")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs (id, url, title, company, location, description, salary, salary_min, salary_max,
		 posted_at, work_type, source, source_id, confidence, fetched_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET title = excluded.title, company = excluded.company,
		 location = excluded.location, description = excluded.description, salary = excluded.salary,
		 salary_min = excluded.salary_min, salary_max = excluded.salary_max, posted_at = excluded.posted_at,
		 work_type = excluded.work_type, source = excluded.source, source_id = excluded.source_id,
		 confidence = excluded.confidence, fetched_at = excluded.fetched_at, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert jobs")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now().UnixMilli()
	n := 0
	for _, r := range records {
		if r.Kind != model.KindJob || r.Job == nil || r.Job.URL == "" {
			continue
		}
		j := r.Job
		var posted sql.NullInt64
		if j.PostedAt != nil {
			posted = sql.NullInt64{Int64: j.PostedAt.UnixMilli(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), j.URL, j.Title, j.Company, j.Location, j.Description, j.Salary,
			j.SalaryMin, j.SalaryMax, posted, string(j.WorkType), j.Source, r.SourceID,
			r.Confidence, r.FetchedAt.UnixMilli(), now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert job %s", j.URL)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert jobs")
	}
	return n, nil
}

func (s *SQLiteStore) QueryJobs(ctx context.Context, filter JobFilter) ([]model.Candidate, error) {
	var where []string
	var args []any

	keywords := model.NormalizeKeywords(filter.Keywords)
	if len(keywords) > 0 {
		var ors []string
		for _, k := range keywords {
			ors = append(ors, `(title LIKE ? OR company LIKE ? OR description LIKE ?)`)
			p := likePattern(k)
			args = append(args, p, p, p)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		where = append(where, `location LIKE ?`)
		args = append(args, likePattern(loc))
	}
	if filter.WorkType != "" && filter.WorkType != model.WorkTypeAny {
		where = append(where, `(work_type = ? OR work_type = '')`)
		args = append(args, string(filter.WorkType))
	}

	q := `SELECT url, title, company, location, description, salary, salary_min, salary_max,
		 posted_at, work_type, source, source_id, confidence, fetched_at FROM jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY confidence DESC, fetched_at DESC LIMIT ?`
	args = append(args, queryLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query jobs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Candidate
	for rows.Next() {
		c, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

// --- Contacts index ---

func (s *SQLiteStore) UpsertContacts(ctx context.Context, records []model.ValidatedRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert contacts")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contacts (id, company_key, canonical_key, name, title, email, phone, linkedin_url,
		 department, company, source_id, confidence, fetched_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_key, canonical_key) DO UPDATE SET name = excluded.name, title = excluded.title,
		 email = excluded.email, phone = excluded.phone, linkedin_url = excluded.linkedin_url,
		 department = excluded.department, company = excluded.company, source_id = excluded.source_id,
		 confidence = excluded.confidence, fetched_at = excluded.fetched_at, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert contacts")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now().UnixMilli()
	n := 0
	for _, r := range records {
		key, ok := contactRowKey(r)
		if !ok {
			continue
		}
		c := r.Contact
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), CompanyKey(c.Company), key, c.Name, c.Title, c.Email, c.Phone,
			c.LinkedInURL, c.Department, c.Company, r.SourceID, r.Confidence, r.FetchedAt.UnixMilli(), now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert contact %s", key)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert contacts")
	}
	return n, nil
}

func (s *SQLiteStore) QueryContacts(ctx context.Context, filter ContactFilter) ([]model.Candidate, error) {
	q := `SELECT name, title, email, phone, linkedin_url, department, company, source_id, confidence, fetched_at
		 FROM contacts WHERE company_key = ?`
	args := []any{CompanyKey(filter.Company)}
	if hint := strings.TrimSpace(filter.TitleHint); hint != "" {
		q += ` AND title LIKE ?`
		args = append(args, likePattern(hint))
	}
	q += ` ORDER BY confidence DESC, fetched_at DESC LIMIT ?`
	args = append(args, queryLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query contacts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Candidate
	for rows.Next() {
		var c model.Contact
		var sourceID string
		var conf int
		var fetched int64
		if err := rows.Scan(&c.Name, &c.Title, &c.Email, &c.Phone, &c.LinkedInURL, &c.Department,
			&c.Company, &sourceID, &conf, &fetched); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		out = append(out, model.NewContactCandidate(sourceID, conf, time.UnixMilli(fetched).UTC(), c))
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate contacts")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row scannable) (model.Candidate, error) {
	var j model.Job
	var workType, sourceID string
	var posted sql.NullInt64
	var conf int
	var fetched int64

	err := row.Scan(&j.URL, &j.Title, &j.Company, &j.Location, &j.Description, &j.Salary,
		&j.SalaryMin, &j.SalaryMax, &posted, &workType, &j.Source, &sourceID, &conf, &fetched)
	if err != nil {
		return model.Candidate{}, eris.Wrap(err, "sqlite: scan job")
	}
	j.WorkType = model.WorkType(workType)
	if posted.Valid {
		t := time.UnixMilli(posted.Int64).UTC()
		j.PostedAt = &t
	}
	return model.NewJobCandidate(sourceID, conf, time.UnixMilli(fetched).UTC(), j), nil
}
