package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

const (
	tokenKeyBytes   = 20 // 40 hex characters
	tokenPrefixSize = 8
)

var (
	ErrTokenNotFound   = auth.ErrTokenNotFound
	ErrInvalidTokenKey = errors.New("token key must be 40 hexadecimal characters")
)

const tokenColumns = `t.id, t.user_id, t.key_prefix, t.description, t.created, t.expires, t.last_used, t.write_enabled`

type TokenService struct {
	db DBConn
}

func NewTokenService(db DBConn) *TokenService {
	return &TokenService{db: db}
}

// GenerateKey returns a new random token key.
func GenerateKey() (string, error) {
	b := make([]byte, tokenKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func validKey(key string) bool {
	if len(key) != tokenKeyBytes*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}

func scanToken(row Row, t *models.Token) error {
	return row.Scan(&t.ID, &t.UserID, &t.KeyPrefix, &t.Description, &t.Created, &t.Expires, &t.LastUsed, &t.WriteEnabled)
}

// Create stores a new token and returns it with the plaintext key, which is
// never retrievable again.
func (s *TokenService) Create(ctx context.Context, params models.CreateTokenParams) (*models.Token, string, error) {
	key := strings.ToLower(params.Key)
	if key == "" {
		generated, err := GenerateKey()
		if err != nil {
			return nil, "", err
		}
		key = generated
	} else if !validKey(key) {
		return nil, "", ErrInvalidTokenKey
	}

	token := &models.Token{}
	err := scanToken(s.db.QueryRow(ctx,
		`INSERT INTO tokens AS t (user_id, key_hash, key_prefix, description, expires, write_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+tokenColumns,
		params.UserID, hashKey(key), key[:tokenPrefixSize], params.Description, params.Expires, params.WriteEnabled,
	), token)
	if err != nil {
		return nil, "", fmt.Errorf("inserting token: %w", err)
	}

	return token, key, nil
}

// GetByKey returns the token matching key together with its owner.
func (s *TokenService) GetByKey(ctx context.Context, key string) (*models.Token, error) {
	token := &models.Token{}
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT `+tokenColumns+`, `+userColumns+`
		 FROM tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.key_hash = $1`,
		hashKey(key),
	).Scan(
		&token.ID, &token.UserID, &token.KeyPrefix, &token.Description, &token.Created, &token.Expires, &token.LastUsed, &token.WriteEnabled,
		&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash, &user.IsActive, &user.IsSuperuser, &user.DateJoined,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}

	groups, err := loadGroups(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	user.Groups = groups
	token.User = user

	return token, nil
}

func (s *TokenService) GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	token := &models.Token{}
	err := scanToken(s.db.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens t WHERE t.id = $1`, id,
	), token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return token, nil
}

// List returns tokens, newest first. A nil owner lists every user's tokens.
func (s *TokenService) List(ctx context.Context, owner *uuid.UUID) ([]models.Token, error) {
	var (
		rows Rows
		err  error
	)
	if owner != nil {
		rows, err = s.db.Query(ctx,
			`SELECT `+tokenColumns+` FROM tokens t WHERE t.user_id = $1 ORDER BY t.created DESC`, *owner)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+tokenColumns+` FROM tokens t ORDER BY t.created DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		var t models.Token
		if err := scanToken(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}

	return tokens, nil
}

func (s *TokenService) Update(ctx context.Context, id uuid.UUID, params models.UpdateTokenParams) (*models.Token, error) {
	token := &models.Token{}
	err := scanToken(s.db.QueryRow(ctx,
		`UPDATE tokens AS t SET
		   description = COALESCE($2, t.description),
		   expires = CASE WHEN $3 THEN NULL ELSE COALESCE($4, t.expires) END,
		   write_enabled = COALESCE($5, t.write_enabled)
		 WHERE t.id = $1
		 RETURNING `+tokenColumns,
		id, params.Description, params.ClearExpires, params.Expires, params.WriteEnabled,
	), token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating token: %w", err)
	}
	return token, nil
}

func (s *TokenService) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Exec(ctx, "DELETE FROM tokens WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *TokenService) UpdateLastUsed(ctx context.Context, tokenID uuid.UUID, at time.Time) error {
	if _, err := s.db.Exec(ctx, "UPDATE tokens SET last_used = $2 WHERE id = $1", tokenID, at); err != nil {
		return fmt.Errorf("updating token last used: %w", err)
	}
	return nil
}
