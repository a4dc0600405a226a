package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

// CreateUser inserts the user together with its starter categories.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string, categories []core.Category) (core.User, error) {
	u := core.User{Username: username, PasswordHash: passwordHash}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, r.q(`INSERT INTO users (username, password_hash, created_at)
			VALUES (?, ?, ?) RETURNING id`), username, passwordHash, unixNow()).Scan(&u.ID)
		if r.dialect.isUniqueViolation(err) {
			return core.NewConflictError("user %q already exists", username)
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		for _, c := range categories {
			c.UserID = u.ID
			if _, err := insertCategory(ctx, tx, r.dialect, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, r.q(`SELECT id, username, password_hash FROM users WHERE username = ?`), username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NewNotFoundError("user", 0)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`UPDATE users SET password_hash = ? WHERE id = ?`), passwordHash, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, s core.Session) error {
	if _, err := r.db.ExecContext(ctx, r.q(`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`),
		s.Token, s.UserID, s.ExpiresAt.Unix()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession resolves a token that has not expired yet.
func (r *Repository) GetSession(ctx context.Context, token string, now time.Time) (core.Session, error) {
	var (
		s         core.Session
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, r.q(`SELECT s.token, s.user_id, u.username, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`), token, now.Unix()).
		Scan(&s.Token, &s.UserID, &s.Username, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.NewUnauthorizedError("session not found or expired")
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM sessions WHERE token = ?`), token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (r *Repository) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM sessions WHERE expires_at <= ?`), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
