// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirefall/mirefall/internal/core"
)

func mockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock pool")
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func characterColumns() []string {
	return []string{"id", "name", "password_hash", "class", "level", "job_level",
		"xp", "job_xp", "hp", "mp", "map_id", "x", "y"}
}

func TestPostgresStore_FindCharacterByName(t *testing.T) {
	id := core.NewULID()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    ulid.ULID
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(characterColumns()).
					AddRow(id.String(), "Mira", "hash", 1, 10, 2,
						int64(500), int64(120), 180, 90, 1, int16(12), int16(34))
				mock.ExpectQuery(`SELECT id, name, password_hash`).
					WithArgs("mira").
					WillReturnRows(rows)
			},
			wantID: id,
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, name, password_hash`).
					WithArgs("nobody").
					WillReturnError(pgx.ErrNoRows)
			},
			wantCode: CodeCharacterNotFound,
		},
		{
			name: "query error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, name, password_hash`).
					WithArgs("mira").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: CodeQueryFailed,
		},
		{
			name: "corrupt id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(characterColumns()).
					AddRow("not-a-ulid", "Mira", "hash", 1, 10, 2,
						int64(0), int64(0), 100, 50, 1, int16(0), int16(0))
				mock.ExpectQuery(`SELECT id, name, password_hash`).
					WithArgs("mira").
					WillReturnRows(rows)
			},
			wantCode: CodeQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := mockStore(t)
			name := "mira"
			if tt.name == "not found" {
				name = "nobody"
			}
			tt.setupMock(mock)

			got, err := store.FindCharacterByName(context.Background(), name)
			if tt.wantCode != "" {
				require.Error(t, err)
				oopsErr, ok := oops.AsOops(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, oopsErr.Code())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
				assert.Equal(t, "Mira", got.Name)
				assert.Equal(t, 10, got.Level)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_LoadCharacterSkills(t *testing.T) {
	store, mock := mockStore(t)
	charID := core.NewULID()

	rows := pgxmock.NewRows([]string{"skill_id", "position"}).
		AddRow(240, 0).
		AddRow(249, 1)
	mock.ExpectQuery(`SELECT skill_id, position FROM character_skills`).
		WithArgs(charID.String()).
		WillReturnRows(rows)

	refs, err := store.LoadCharacterSkills(context.Background(), charID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 240, refs[0].SkillID)
	assert.Equal(t, 1, refs[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCharacter(t *testing.T) {
	rec := &CharacterRecord{
		ID: core.NewULID(), Name: "Mira", Class: 1,
		Level: 11, JobLevel: 2, XP: 40, JobXP: 8,
		HP: 150, MP: 70, MapID: 1, X: 20, Y: 30,
	}

	t.Run("success", func(t *testing.T) {
		store, mock := mockStore(t)
		mock.ExpectExec(`INSERT INTO characters`).
			WithArgs(rec.ID.String(), rec.Name, rec.PasswordHash, rec.Class,
				rec.Level, rec.JobLevel, rec.XP, rec.JobXP,
				rec.HP, rec.MP, rec.MapID, rec.X, rec.Y).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.SaveCharacter(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transient error is retried", func(t *testing.T) {
		store, mock := mockStore(t)
		mock.ExpectExec(`INSERT INTO characters`).
			WithArgs(rec.ID.String(), rec.Name, rec.PasswordHash, rec.Class,
				rec.Level, rec.JobLevel, rec.XP, rec.JobXP,
				rec.HP, rec.MP, rec.MapID, rec.X, rec.Y).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectExec(`INSERT INTO characters`).
			WithArgs(rec.ID.String(), rec.Name, rec.PasswordHash, rec.Class,
				rec.Level, rec.JobLevel, rec.XP, rec.JobXP,
				rec.HP, rec.MP, rec.MapID, rec.X, rec.Y).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.SaveCharacter(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skills replaced in order", func(t *testing.T) {
		store, mock := mockStore(t)
		charID := core.NewULID()
		mock.ExpectExec(`DELETE FROM character_skills`).
			WithArgs(charID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectExec(`INSERT INTO character_skills`).
			WithArgs(charID.String(), 240, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO character_skills`).
			WithArgs(charID.String(), 249, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := store.SaveCharacterSkills(context.Background(), charID,
			[]SkillRef{{SkillID: 240, Position: 0}, {SkillID: 249, Position: 1}})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("constraint violation is not retried", func(t *testing.T) {
		store, mock := mockStore(t)
		mock.ExpectExec(`INSERT INTO characters`).
			WithArgs(rec.ID.String(), rec.Name, rec.PasswordHash, rec.Class,
				rec.Level, rec.JobLevel, rec.XP, rec.JobXP,
				rec.HP, rec.MP, rec.MapID, rec.X, rec.Y).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := store.SaveCharacter(context.Background(), rec)
		require.Error(t, err)
		var pgErr *pgconn.PgError
		assert.ErrorAs(t, err, &pgErr)
		// A second exec expectation was never registered; a retry would
		// have failed ExpectationsWereMet.
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
