package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gatherly/internal/domain"
)

// HashToken returns a stable SHA-256 hex digest for a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// InsertAccessToken stores a hashed token. TokenHash must already contain the hashed value.
func (r Repo) InsertAccessToken(ctx context.Context, tok domain.AccessToken) error {
	if tok.ID == "" {
		return errors.New("id required")
	}
	if tok.UserID == 0 {
		return errors.New("user_id required")
	}
	if tok.TokenHash == "" {
		return errors.New("token_hash required")
	}
	if tok.CreatedAt == "" {
		tok.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO access_tokens(id,user_id,name,token_hash,created_at) VALUES (?,?,?,?,?)`,
		tok.ID, tok.UserID, nullable(tok.Name), tok.TokenHash, tok.CreatedAt)
	return err
}

const tokenColumns = `id,user_id,COALESCE(name,''),token_hash,created_at,COALESCE(last_used_at,'')`

func scanAccessToken(row scanner) (domain.AccessToken, error) {
	var tok domain.AccessToken
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.Name, &tok.TokenHash, &tok.CreatedAt, &tok.LastUsedAt); err != nil {
		return domain.AccessToken{}, notFound(err)
	}
	return tok, nil
}

// GetAccessTokenByHash returns a live token by its hashed value.
func (r Repo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	return scanAccessToken(r.DB.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM access_tokens WHERE token_hash=? LIMIT 1`, hash))
}

// ListAccessTokens returns the live tokens of a user, newest first.
func (r Repo) ListAccessTokens(ctx context.Context, userID int64) ([]domain.AccessToken, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+tokenColumns+` FROM access_tokens WHERE user_id=? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AccessToken
	for rows.Next() {
		tok, err := scanAccessToken(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, tok)
	}
	return res, rows.Err()
}

func (r Repo) TouchAccessToken(ctx context.Context, id, ts string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE access_tokens SET last_used_at=? WHERE id=?`, ts, id)
	return err
}

// DeleteAccessToken revokes one token.
func (r Repo) DeleteAccessToken(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM access_tokens WHERE id=?`, id)
	return err
}

// DeleteUserAccessTokens revokes every token of a user and returns how many were removed.
func (r Repo) DeleteUserAccessTokens(ctx context.Context, userID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id=?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
