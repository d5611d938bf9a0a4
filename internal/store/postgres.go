package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/aid-simulator/internal/db"
	"github.com/sells-group/aid-simulator/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const programColumns = `id, scope, name, description, category, target_profile, eligibility, amount, source_url, apply_url, family, position`

const (
	sqlRegionPrograms   = `SELECT ` + programColumns + ` FROM programs WHERE scope <> 'national' AND (scope = $1 OR scope LIKE $2) ORDER BY position, id`
	sqlNationalPrograms = `SELECT ` + programColumns + ` FROM programs WHERE scope = 'national' ORDER BY position, id`
	sqlGetSimulation    = `SELECT id, user_id, language, profile, aides, total_monthly, relevance, created_at FROM simulations WHERE id = $1`
	sqlGetSavedAide     = `SELECT id, user_id, program_id, name, category, monthly_amount, simulation_id, notes, status, created_at, updated_at, applied_at, resolved_at FROM saved_aides WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"region_programs":   sqlRegionPrograms,
	"national_programs": sqlNationalPrograms,
	"get_simulation":    sqlGetSimulation,
	"get_saved_aide":    sqlGetSavedAide,
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS programs (
	id             TEXT NOT NULL,
	scope          TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	target_profile TEXT NOT NULL DEFAULT '',
	eligibility    JSONB NOT NULL DEFAULT '{}',
	amount         JSONB NOT NULL DEFAULT '{}',
	source_url     TEXT NOT NULL DEFAULT '',
	apply_url      TEXT NOT NULL DEFAULT '',
	family         TEXT NOT NULL DEFAULT '',
	position       INTEGER NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, scope)
);

CREATE INDEX IF NOT EXISTS idx_programs_scope ON programs(scope text_pattern_ops);

CREATE TABLE IF NOT EXISTS simulations (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	language      TEXT NOT NULL,
	profile       JSONB NOT NULL,
	aides         JSONB NOT NULL,
	total_monthly INTEGER NOT NULL,
	relevance     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_simulations_user_created ON simulations(user_id, created_at DESC);

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
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	applied_at     TIMESTAMPTZ,
	resolved_at    TIMESTAMPTZ,
	UNIQUE (user_id, program_id)
);

CREATE INDEX IF NOT EXISTS idx_saved_aides_user ON saved_aides(user_id, created_at);
`

// Ping checks connectivity.
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

// --- Catalog ---

func (s *PostgresStore) RegionPrograms(ctx context.Context, slug string) ([]model.ProgramRecord, error) {
	rows, err := s.pool.Query(ctx, sqlRegionPrograms, slug, regionPattern(slug))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: region programs %s", slug)
	}
	return collectPrograms(rows)
}

func (s *PostgresStore) NationalPrograms(ctx context.Context) ([]model.ProgramRecord, error) {
	rows, err := s.pool.Query(ctx, sqlNationalPrograms)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: national programs")
	}
	return collectPrograms(rows)
}

func collectPrograms(rows pgx.Rows) ([]model.ProgramRecord, error) {
	defer rows.Close()

	var out []model.ProgramRecord
	for rows.Next() {
		var p model.ProgramRecord
		var eligJSON, amountJSON []byte
		var family string
		if err := rows.Scan(&p.ID, &p.Scope, &p.Name, &p.Description, &p.Category, &p.TargetProfile,
			&eligJSON, &amountJSON, &p.SourceURL, &p.ApplyURL, &family, &p.Position); err != nil {
			return nil, eris.Wrap(err, "postgres: scan program")
		}
		if err := decodeProgramJSON(&p, eligJSON, amountJSON); err != nil {
			return nil, eris.Wrapf(err, "postgres: program %s", p.ID)
		}
		p.Family = model.Family(family)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: programs iterate")
}

var programUpsertColumns = []string{
	"id", "scope", "name", "description", "category", "target_profile",
	"eligibility", "amount", "source_url", "apply_url", "family", "position", "updated_at",
}

// UpsertPrograms bulk-merges catalog records keyed on (id, scope).
func (s *PostgresStore) UpsertPrograms(ctx context.Context, programs []model.ProgramRecord) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(programs))
	for _, p := range programs {
		eligJSON, amountJSON, err := encodeProgramJSON(p)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: program %s", p.ID)
		}
		rows = append(rows, []any{
			p.ID, p.Scope, p.Name, p.Description, p.Category, p.TargetProfile,
			eligJSON, amountJSON, p.SourceURL, p.ApplyURL, string(p.Family), int32(p.Position), now,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "programs",
		Columns:      programUpsertColumns,
		ConflictKeys: []string{"id", "scope"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert programs")
}

// --- Simulations ---

func (s *PostgresStore) InsertSimulation(ctx context.Context, r *model.SimulationResult) error {
	profileJSON, aidesJSON, err := encodeSimulationJSON(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal simulation")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO simulations (id, user_id, language, profile, aides, total_monthly, relevance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.UserID, r.Language, profileJSON, aidesJSON, r.TotalMonthly, string(r.Relevance), r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert simulation %s", r.ID)
}

func (s *PostgresStore) GetSimulation(ctx context.Context, id string) (*model.SimulationResult, error) {
	r, err := scanPgSimulation(s.pool.QueryRow(ctx, sqlGetSimulation, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "simulation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get simulation %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListSimulations(ctx context.Context, userID string, limit int) ([]model.SimulationResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, language, profile, aides, total_monthly, relevance, created_at
		 FROM simulations WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		userID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list simulations")
	}
	defer rows.Close()

	var out []model.SimulationResult
	for rows.Next() {
		r, err := scanPgSimulation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan simulation")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list simulations iterate")
}

func scanPgSimulation(row pgx.Row) (*model.SimulationResult, error) {
	var r model.SimulationResult
	var profileJSON, aidesJSON []byte
	var relevance string
	if err := row.Scan(&r.ID, &r.UserID, &r.Language, &profileJSON, &aidesJSON, &r.TotalMonthly, &relevance, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeSimulationJSON(&r, profileJSON, aidesJSON); err != nil {
		return nil, err
	}
	r.Relevance = model.RelevancePath(relevance)
	return &r, nil
}

// --- Saved aides ---

func (s *PostgresStore) InsertSavedAide(ctx context.Context, a *model.SavedAide) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO saved_aides (id, user_id, program_id, name, category, monthly_amount, simulation_id, notes, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.UserID, a.ProgramID, a.Name, a.Category, a.MonthlyAmount, a.SimulationID, a.Notes,
		string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return eris.Wrapf(ErrConflict, "saved aide %s/%s", a.UserID, a.ProgramID)
		}
		return eris.Wrap(err, "postgres: insert saved aide")
	}
	return nil
}

func (s *PostgresStore) GetSavedAide(ctx context.Context, id string) (*model.SavedAide, error) {
	a, err := scanPgSavedAide(s.pool.QueryRow(ctx, sqlGetSavedAide, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "saved aide %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get saved aide %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListSavedAides(ctx context.Context, userID string) ([]model.SavedAide, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, program_id, name, category, monthly_amount, simulation_id, notes, status, created_at, updated_at, applied_at, resolved_at
		 FROM saved_aides WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list saved aides")
	}
	defer rows.Close()

	var out []model.SavedAide
	for rows.Next() {
		a, err := scanPgSavedAide(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan saved aide")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list saved aides iterate")
}

func scanPgSavedAide(row pgx.Row) (*model.SavedAide, error) {
	var a model.SavedAide
	var status string
	if err := row.Scan(&a.ID, &a.UserID, &a.ProgramID, &a.Name, &a.Category, &a.MonthlyAmount,
		&a.SimulationID, &a.Notes, &status, &a.CreatedAt, &a.UpdatedAt, &a.AppliedAt, &a.ResolvedAt); err != nil {
		return nil, err
	}
	a.Status = model.SavedStatus(status)
	return &a, nil
}

func (s *PostgresStore) UpdateSavedAideStatus(ctx context.Context, u StatusUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_aides
		 SET status = $1, updated_at = $2,
		     applied_at = COALESCE($3, applied_at),
		     resolved_at = COALESCE($4, resolved_at)
		 WHERE id = $5 AND status = $6`,
		string(u.To), u.UpdatedAt, u.AppliedAt, u.ResolvedAt, u.ID, string(u.From),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update saved aide status %s", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrStale, "saved aide %s no longer %s", u.ID, u.From)
	}
	return nil
}

func (s *PostgresStore) DeleteSavedAide(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_aides WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete saved aide %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "saved aide %s", id)
	}
	return nil
}

// --- JSON column helpers shared by both drivers ---

func encodeProgramJSON(p model.ProgramRecord) ([]byte, []byte, error) {
	eligJSON, err := json.Marshal(p.Eligibility)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal eligibility")
	}
	amountJSON, err := json.Marshal(p.Amount)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal amount")
	}
	return eligJSON, amountJSON, nil
}

func decodeProgramJSON(p *model.ProgramRecord, eligJSON, amountJSON []byte) error {
	if len(eligJSON) > 0 {
		if err := json.Unmarshal(eligJSON, &p.Eligibility); err != nil {
			return eris.Wrap(err, "unmarshal eligibility")
		}
	}
	if len(amountJSON) > 0 {
		if err := json.Unmarshal(amountJSON, &p.Amount); err != nil {
			return eris.Wrap(err, "unmarshal amount")
		}
	}
	return nil
}

func encodeSimulationJSON(r *model.SimulationResult) ([]byte, []byte, error) {
	profileJSON, err := json.Marshal(r.Profile)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal profile")
	}
	aides := r.Aides
	if aides == nil {
		aides = []model.EstimatedAide{}
	}
	aidesJSON, err := json.Marshal(aides)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal aides")
	}
	return profileJSON, aidesJSON, nil
}

func decodeSimulationJSON(r *model.SimulationResult, profileJSON, aidesJSON []byte) error {
	if err := json.Unmarshal(profileJSON, &r.Profile); err != nil {
		return eris.Wrap(err, "unmarshal profile")
	}
	if err := json.Unmarshal(aidesJSON, &r.Aides); err != nil {
		return eris.Wrap(err, "unmarshal aides")
	}
	return nil
}
