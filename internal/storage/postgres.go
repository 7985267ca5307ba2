// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface is the subset of pgxpool.Pool the store uses. Kept narrow
// so tests can substitute a mock pool.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore connects a pool to the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code(CodeQueryFailed).Wrapf(err, "failed to connect to database")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// FindCharacterByName looks up a character by login name.
func (s *PostgresStore) FindCharacterByName(ctx context.Context, name string) (*CharacterRecord, error) {
	var rec CharacterRecord
	var idStr string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, password_hash, class, level, job_level, xp, job_xp, hp, mp, map_id, x, y
		 FROM characters WHERE lower(name) = lower($1)`,
		name,
	).Scan(&idStr, &rec.Name, &rec.PasswordHash, &rec.Class, &rec.Level, &rec.JobLevel,
		&rec.XP, &rec.JobXP, &rec.HP, &rec.MP, &rec.MapID, &rec.X, &rec.Y)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCharacterNotFound(name)
	}
	if err != nil {
		return nil, oops.Code(CodeQueryFailed).
			With("name", name).
			Wrapf(err, "failed to query character")
	}

	rec.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code(CodeQueryFailed).
			With("id", idStr).
			Wrapf(err, "corrupt character id in database")
	}
	return &rec, nil
}

// LoadCharacterSkills returns the character's learned skills ordered
// by quickbar position.
func (s *PostgresStore) LoadCharacterSkills(ctx context.Context, charID ulid.ULID) ([]SkillRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT skill_id, position FROM character_skills
		 WHERE character_id = $1 ORDER BY position`,
		charID.String(),
	)
	if err != nil {
		return nil, oops.Code(CodeQueryFailed).
			With("character_id", charID.String()).
			Wrapf(err, "failed to query character skills")
	}
	defer rows.Close()

	var refs []SkillRef
	for rows.Next() {
		var ref SkillRef
		if err := rows.Scan(&ref.SkillID, &ref.Position); err != nil {
			return nil, oops.Code(CodeQueryFailed).Wrapf(err, "failed to scan skill row")
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code(CodeQueryFailed).Wrapf(err, "error iterating skill rows")
	}
	return refs, nil
}

// SaveCharacter upserts the record. Transient failures are retried
// with fibonacci backoff so a flickering database does not lose a
// logout save.
func (s *PostgresStore) SaveCharacter(ctx context.Context, rec *CharacterRecord) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO characters (id, name, password_hash, class, level, job_level, xp, job_xp, hp, mp, map_id, x, y)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (id) DO UPDATE SET
			   level = EXCLUDED.level, job_level = EXCLUDED.job_level,
			   xp = EXCLUDED.xp, job_xp = EXCLUDED.job_xp,
			   hp = EXCLUDED.hp, mp = EXCLUDED.mp,
			   map_id = EXCLUDED.map_id, x = EXCLUDED.x, y = EXCLUDED.y`,
			rec.ID.String(), rec.Name, rec.PasswordHash, rec.Class,
			rec.Level, rec.JobLevel, rec.XP, rec.JobXP,
			rec.HP, rec.MP, rec.MapID, rec.X, rec.Y,
		)
		if err != nil {
			// Constraint violations will not heal on retry.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code(CodeQueryFailed).
			With("character_id", rec.ID.String()).
			Wrapf(err, "failed to save character")
	}
	return nil
}

// SaveCharacterSkills replaces the character's learned skill list.
func (s *PostgresStore) SaveCharacterSkills(ctx context.Context, charID ulid.ULID, refs []SkillRef) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM character_skills WHERE character_id = $1`, charID.String())
	if err != nil {
		return oops.Code(CodeQueryFailed).
			With("character_id", charID.String()).
			Wrapf(err, "failed to clear character skills")
	}
	for _, ref := range refs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO character_skills (character_id, skill_id, position)
			 VALUES ($1, $2, $3)`,
			charID.String(), ref.SkillID, ref.Position,
		)
		if err != nil {
			return oops.Code(CodeQueryFailed).
				With("character_id", charID.String()).
				With("skill_id", ref.SkillID).
				Wrapf(err, "failed to save character skill")
		}
	}
	return nil
}
