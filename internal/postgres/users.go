package postgres

import (
	"context"

	"github.com/dukerupert/gamersmart/internal/domain"
)

const getUserBySessionToken = `
SELECT u.id, u.email, u.first_name, u.last_name, u.is_verified
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token_hash = $1 AND s.expires_at > now()
`

// GetUserBySessionToken resolves a hashed bearer token to its user.
func (q *Queries) GetUserBySessionToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	var u domain.User
	err := q.db.QueryRow(ctx, getUserBySessionToken, tokenHash).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Verified,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
