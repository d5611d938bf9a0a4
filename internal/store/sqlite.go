package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/aid-simulator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS programs (
	id             TEXT NOT NULL,
	scope          TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	target_profile TEXT NOT NULL DEFAULT '',
	eligibility    TEXT NOT NULL DEFAULT '{}',
	amount         TEXT NOT NULL DEFAULT '{}',
	source_url     TEXT NOT NULL DEFAULT '',
	apply_url      TEXT NOT NULL DEFAULT '',
	family         TEXT NOT NULL DEFAULT '',
	position       INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (id, scope)
);

CREATE INDEX IF NOT EXISTS idx_programs_scope ON programs(scope);

CREATE TABLE IF NOT EXISTS simulations (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	language      TEXT NOT NULL,
	profile       TEXT NOT NULL,
	aides         TEXT NOT NULL,
	total_monthly INTEGER NOT NULL,
	relevance     TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_simulations_user_created ON simulations(user_id, created_at);

CREATE TABLE IF NOT EXISTS saved_aides (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	program_id     TEXT NOT NULL,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	monthly_amount INTEGER NOT NULL DEFAULT 0,
	simulation_id  TEXT,
	notes          TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'saved',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	applied_at     DATETIME,
	resolved_at    DATETIME,
	UNIQUE (user_id, program_id)
);

CREATE INDEX IF NOT EXISTS idx_saved_aides_user ON saved_aides(user_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Catalog ---

const sqliteProgramSelect = `SELECT ` + programColumns + ` FROM programs`

func (s *SQLiteStore) RegionPrograms(ctx context.Context, slug string) ([]model.ProgramRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteProgramSelect+` WHERE scope <> 'national' AND (scope = ? OR scope LIKE ?) ORDER BY position, id`,
		slug, regionPattern(slug),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: region programs %s", slug)
	}
	return scanSQLitePrograms(rows)
}

func (s *SQLiteStore) NationalPrograms(ctx context.Context) ([]model.ProgramRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqliteProgramSelect+` WHERE scope = 'national' ORDER BY position, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: national programs")
	}
	return scanSQLitePrograms(rows)
}

func scanSQLitePrograms(rows *sql.Rows) ([]model.ProgramRecord, error) {
	defer rows.Close() //nolint:errcheck

	var out []model.ProgramRecord
	for rows.Next() {
		var p model.ProgramRecord
		var eligJSON, amountJSON, family string
		if err := rows.Scan(&p.ID, &p.Scope, &p.Name, &p.Description, &p.Category, &p.TargetProfile,
			&eligJSON, &amountJSON, &p.SourceURL, &p.ApplyURL, &family, &p.Position); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan program")
		}
		if err := decodeProgramJSON(&p, []byte(eligJSON), []byte(amountJSON)); err != nil {
			return nil, eris.Wrapf(err, "sqlite: program %s", p.ID)
		}
		p.Family = model.Family(family)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: programs iterate")
}

// UpsertPrograms merges catalog records keyed on (id, scope) in one transaction.
func (s *SQLiteStore) UpsertPrograms(ctx context.Context, programs []model.ProgramRecord) (int64, error) {
	if len(programs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert programs")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO programs (id, scope, name, description, category, target_profile, eligibility, amount, source_url, apply_url, family, position, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id, scope) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			target_profile = excluded.target_profile,
			eligibility = excluded.eligibility,
			amount = excluded.amount,
			source_url = excluded.source_url,
			apply_url = excluded.apply_url,
			family = excluded.family,
			position = excluded.position,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert programs")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, p := range programs {
		eligJSON, amountJSON, err := encodeProgramJSON(p)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: program %s", p.ID)
		}
		res, err := stmt.ExecContext(ctx,
			p.ID, p.Scope, p.Name, p.Description, p.Category, p.TargetProfile,
			string(eligJSON), string(amountJSON), p.SourceURL, p.ApplyURL, string(p.Family), p.Position, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert program %s", p.ID)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert programs")
	}
	return n, nil
}

// --- Simulations ---

func (s *SQLiteStore) InsertSimulation(ctx context.Context, r *model.SimulationResult) error {
	profileJSON, aidesJSON, err := encodeSimulationJSON(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal simulation")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulations (id, user_id, language, profile, aides, total_monthly, relevance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Language, string(profileJSON), string(aidesJSON), r.TotalMonthly, string(r.Relevance), r.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert simulation %s", r.ID)
}

const sqliteSimulationSelect = `SELECT id, user_id, language, profile, aides, total_monthly, relevance, created_at FROM simulations`

func (s *SQLiteStore) GetSimulation(ctx context.Context, id string) (*model.SimulationResult, error) {
	r, err := scanSQLiteSimulation(s.db.QueryRowContext(ctx, sqliteSimulationSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "simulation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get simulation %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListSimulations(ctx context.Context, userID string, limit int) ([]model.SimulationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteSimulationSelect+` WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list simulations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SimulationResult
	for rows.Next() {
		r, err := scanSQLiteSimulation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan simulation")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list simulations iterate")
}

func scanSQLiteSimulation(row scannable) (*model.SimulationResult, error) {
	var r model.SimulationResult
	var profileJSON, aidesJSON, relevance string
	if err := row.Scan(&r.ID, &r.UserID, &r.Language, &profileJSON, &aidesJSON, &r.TotalMonthly, &relevance, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeSimulationJSON(&r, []byte(profileJSON), []byte(aidesJSON)); err != nil {
		return nil, err
	}
	r.Relevance = model.RelevancePath(relevance)
	return &r, nil
}

// --- Saved aides ---

func (s *SQLiteStore) InsertSavedAide(ctx context.Context, a *model.SavedAide) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO saved_aides (id, user_id, program_id, name, category, monthly_amount, simulation_id, notes, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.ProgramID, a.Name, a.Category, a.MonthlyAmount, a.SimulationID, a.Notes,
		string(a.Status), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "saved aide %s/%s", a.UserID, a.ProgramID)
		}
		return eris.Wrap(err, "sqlite: insert saved aide")
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const sqliteSavedAideSelect = `SELECT id, user_id, program_id, name, category, monthly_amount, simulation_id, notes, status, created_at, updated_at, applied_at, resolved_at FROM saved_aides`

func (s *SQLiteStore) GetSavedAide(ctx context.Context, id string) (*model.SavedAide, error) {
	a, err := scanSQLiteSavedAide(s.db.QueryRowContext(ctx, sqliteSavedAideSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "saved aide %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get saved aide %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListSavedAides(ctx context.Context, userID string) ([]model.SavedAide, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSavedAideSelect+` WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list saved aides")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SavedAide
	for rows.Next() {
		a, err := scanSQLiteSavedAide(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saved aide")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list saved aides iterate")
}

func scanSQLiteSavedAide(row scannable) (*model.SavedAide, error) {
	var a model.SavedAide
	var status string
	var simID sql.NullString
	var appliedAt, resolvedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.UserID, &a.ProgramID, &a.Name, &a.Category, &a.MonthlyAmount,
		&simID, &a.Notes, &status, &a.CreatedAt, &a.UpdatedAt, &appliedAt, &resolvedAt); err != nil {
		return nil, err
	}
	a.Status = model.SavedStatus(status)
	if simID.Valid {
		a.SimulationID = &simID.String
	}
	if appliedAt.Valid {
		a.AppliedAt = &appliedAt.Time
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateSavedAideStatus(ctx context.Context, u StatusUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE saved_aides
		 SET status = ?, updated_at = ?,
		     applied_at = COALESCE(?, applied_at),
		     resolved_at = COALESCE(?, resolved_at)
		 WHERE id = ? AND status = ?`,
		string(u.To), u.UpdatedAt.UTC(), nullTime(u.AppliedAt), nullTime(u.ResolvedAt), u.ID, string(u.From),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update saved aide status %s", u.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrStale, "saved aide %s no longer %s", u.ID, u.From)
	}
	return nil
}

func (s *SQLiteStore) DeleteSavedAide(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_aides WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete saved aide %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "saved aide %s", id)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

type scannable interface {
	Scan(dest ...any) error
}
