package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aid-simulator/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var programCols = []string{"id", "scope", "name", "description", "category", "target_profile", "eligibility", "amount", "source_url", "apply_url", "family", "position"}

func TestPostgresStore_RegionPrograms(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM programs WHERE scope <> 'national' AND \(scope = \$1 OR scope LIKE \$2\)`).
		WithArgs("ile-de-france", "ile-de-france%").
		WillReturnRows(pgxmock.NewRows(programCols).
			AddRow("apl", "ile-de-france", "APL", "Aide au logement", "housing", "", []byte(`{"nationalities":["all"]}`), []byte(`{"max":350}`), "", "", "housing", 1).
			AddRow("navigo", "ile-de-france", "Navigo", "", "transport", "students", []byte(`{}`), []byte(`{}`), "", "", "", 2))

	got, err := s.RegionPrograms(context.Background(), "ile-de-france")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.FamilyHousing, got[0].Family)
	assert.Equal(t, 350.0, got[0].Amount.MaxOr(0))
	assert.Equal(t, []string{"all"}, got[0].Eligibility.Nationalities)
	assert.Equal(t, model.Family(""), got[1].Family)
	assert.Equal(t, "students", got[1].TargetProfile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_NationalPrograms_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM programs WHERE scope = 'national'`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.NationalPrograms(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "national programs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPrograms(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_programs"}, programUpsertColumns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "programs" .* ON CONFLICT \("id", "scope"\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertPrograms(context.Background(), []model.ProgramRecord{
		{ID: "rsa", Scope: model.ScopeNational, Name: "RSA", Family: model.FamilyMinimumIncome},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSimulation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, user_id, language, profile, aides, total_monthly, relevance, created_at FROM simulations WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSimulation(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSimulation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM simulations WHERE id = \$1`).
		WithArgs("sim-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "language", "profile", "aides", "total_monthly", "relevance", "created_at"}).
			AddRow("sim-1", "user-1", "en", []byte(`{"age":22,"nationality":"eu"}`),
				[]byte(`[{"program_id":"apl","monthly_amount":300}]`), 300, "llm", created))

	got, err := s.GetSimulation(context.Background(), "sim-1")
	require.NoError(t, err)
	assert.Equal(t, 22, got.Profile.Age)
	assert.Equal(t, model.RelevanceLLM, got.Relevance)
	require.Len(t, got.Aides, 1)
	assert.Equal(t, 300, got.Aides[0].MonthlyAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSimulation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO simulations`).
		WithArgs("sim-1", "user-1", "fr", pgxmock.AnyArg(), []byte(`[]`), 0, "fallback", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertSimulation(context.Background(), &model.SimulationResult{
		ID: "sim-1", UserID: "user-1", Language: "fr", Relevance: model.RelevanceFallback, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSavedAide_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO saved_aides`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.InsertSavedAide(context.Background(), &model.SavedAide{ID: "sa-2", UserID: "user-1", ProgramID: "apl", Status: model.SavedStatusSaved})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSavedAide_OtherError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO saved_aides`).WillReturnError(errors.New("disk full"))

	err := s.InsertSavedAide(context.Background(), &model.SavedAide{ID: "sa-2", UserID: "user-1", ProgramID: "apl"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "insert saved aide")
}

func TestPostgresStore_UpdateSavedAideStatus_Stale(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE saved_aides`).
		WithArgs("applied", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "sa-1", "saved").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateSavedAideStatus(context.Background(), StatusUpdate{
		ID: "sa-1", From: model.SavedStatusSaved, To: model.SavedStatusApplied, UpdatedAt: now, AppliedAt: &now,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStale))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSavedAide(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	simID := "sim-1"

	mock.ExpectQuery(`FROM saved_aides WHERE id = \$1`).
		WithArgs("sa-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "program_id", "name", "category", "monthly_amount", "simulation_id", "notes", "status", "created_at", "updated_at", "applied_at", "resolved_at"}).
			AddRow("sa-1", "user-1", "apl", "APL", "housing", 300, &simID, "", "applied", now, now, &now, (*time.Time)(nil)))

	got, err := s.GetSavedAide(context.Background(), "sa-1")
	require.NoError(t, err)
	assert.Equal(t, model.SavedStatusApplied, got.Status)
	require.NotNil(t, got.AppliedAt)
	assert.Nil(t, got.ResolvedAt)
	assert.Equal(t, "sim-1", *got.SimulationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSavedAide_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM saved_aides WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteSavedAide(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS programs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
