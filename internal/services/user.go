package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tokengate/internal/models"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameAlreadyExists = errors.New("username already exists")
)

const userColumns = `u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_active, u.is_superuser, u.date_joined`

type UserService struct {
	db DBConn
}

func NewUserService(db DBConn) *UserService {
	return &UserService{db: db}
}

func scanUser(row Row, u *models.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.DateJoined)
}

func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", params.Username).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking username existence: %w", err)
	}
	if exists {
		return nil, ErrUsernameAlreadyExists
	}

	user := &models.User{}
	err = scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users AS u (username, email, password_hash, is_active, is_superuser)
		 VALUES ($1, $2, $3, true, $4)
		 RETURNING `+userColumns,
		params.Username, params.Email, params.PasswordHash, params.IsSuperuser,
	), user)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = $1`, username)
}

func (s *UserService) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := scanUser(s.db.QueryRow(ctx, query, arg), user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	groups, err := loadGroups(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	user.Groups = groups

	return user, nil
}

// SyncDirectoryAttributes mirrors directory attributes onto the local user,
// creating an active local account on first sight. Group membership is left
// to the caller.
func (s *UserService) SyncDirectoryAttributes(ctx context.Context, username string, attrs models.DirectoryAttributes) (*models.User, error) {
	user := &models.User{}
	err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users AS u (username, email, first_name, last_name, password_hash, is_active, is_superuser)
		 VALUES ($1, $2, $3, $4, '', true, false)
		 ON CONFLICT (username) DO UPDATE
		   SET email = EXCLUDED.email, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		 RETURNING `+userColumns,
		username, attrs.Email, attrs.FirstName, attrs.LastName,
	), user)
	if err != nil {
		return nil, fmt.Errorf("syncing directory user: %w", err)
	}
	return user, nil
}

func loadGroups(ctx context.Context, db DBConn, userID uuid.UUID) ([]string, error) {
	rows, err := db.Query(ctx,
		"SELECT group_name FROM user_groups WHERE user_id = $1 ORDER BY group_name", userID)
	if err != nil {
		return nil, fmt.Errorf("querying user groups: %w", err)
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning group name: %w", err)
		}
		groups = append(groups, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user groups: %w", err)
	}
	return groups, nil
}
