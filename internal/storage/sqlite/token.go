package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/model"
)

// UpsertOAuthToken stores or replaces an integration credential.
func (r *Repository) UpsertOAuthToken(ctx context.Context, t model.OAuthToken) error {
	if !t.Valid() {
		return fmt.Errorf("refresh token is required: %w", model.ErrNotValid)
	}

	query := `
		INSERT INTO oauth_tokens (provider, user_email, refresh_token, scope, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider, user_email) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			scope = excluded.scope
	`

	_, err := r.db.ExecContext(ctx, query,
		t.Provider,
		normalizeEmail(t.UserEmail),
		t.RefreshToken,
		t.Scope,
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("could not upsert oauth token: %w", err)
	}

	r.logger.Debugf("Stored %s token for %s", t.Provider, t.UserEmail)
	return nil
}

// GetOAuthToken retrieves an integration credential. Tokens stored with an
// empty refresh token are never returned.
func (r *Repository) GetOAuthToken(ctx context.Context, provider, userEmail string) (*model.OAuthToken, error) {
	query := `
		SELECT provider, user_email, refresh_token, scope, created_at
		FROM oauth_tokens
		WHERE provider = ? AND user_email = ?
	`

	var t model.OAuthToken
	var createdAt int64

	err := r.db.QueryRowContext(ctx, query, provider, normalizeEmail(userEmail)).Scan(
		&t.Provider,
		&t.UserEmail,
		&t.RefreshToken,
		&t.Scope,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s token for %s: %w", provider, userEmail, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query oauth token: %w", err)
	}

	if !t.Valid() {
		return nil, fmt.Errorf("%s token for %s has no refresh token: %w", provider, userEmail, model.ErrNotFound)
	}

	t.CreatedAt = timeFromUnix(createdAt)
	return &t, nil
}

// DeleteOAuthToken removes an integration credential.
func (r *Repository) DeleteOAuthToken(ctx context.Context, provider, userEmail string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE provider = ? AND user_email = ?`,
		provider, normalizeEmail(userEmail),
	)
	if err != nil {
		return fmt.Errorf("could not delete oauth token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s token for %s: %w", provider, userEmail, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted %s token for %s", provider, userEmail)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
