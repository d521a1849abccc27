package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tokengate/internal/models"
)

type mockUserService struct {
	CreateFunc                  func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc                 func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsernameFunc           func(ctx context.Context, username string) (*models.User, error)
	SyncDirectoryAttributesFunc func(ctx context.Context, username string, attrs models.DirectoryAttributes) (*models.User, error)
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserService) SyncDirectoryAttributes(ctx context.Context, username string, attrs models.DirectoryAttributes) (*models.User, error) {
	if m.SyncDirectoryAttributesFunc != nil {
		return m.SyncDirectoryAttributesFunc(ctx, username, attrs)
	}
	return nil, nil
}

type mockTokenService struct {
	CreateFunc  func(ctx context.Context, params models.CreateTokenParams) (*models.Token, string, error)
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*models.Token, error)
	ListFunc    func(ctx context.Context, owner *uuid.UUID) ([]models.Token, error)
	UpdateFunc  func(ctx context.Context, id uuid.UUID, params models.UpdateTokenParams) (*models.Token, error)
	DeleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTokenService) Create(ctx context.Context, params models.CreateTokenParams) (*models.Token, string, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, "", nil
}

func (m *mockTokenService) GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTokenService) List(ctx context.Context, owner *uuid.UUID) ([]models.Token, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, owner)
	}
	return nil, nil
}

func (m *mockTokenService) Update(ctx context.Context, id uuid.UUID, params models.UpdateTokenParams) (*models.Token, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *mockTokenService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

type mockPasswordVerifier struct {
	valid bool
}

func (m mockPasswordVerifier) VerifyPassword(hash, password string) bool {
	return m.valid
}

// mockChecker grants capabilities by "perm" or "perm@objectID".
type mockChecker struct {
	grants map[string]bool
	err    error
}

func (m *mockChecker) HasPerms(ctx context.Context, user *models.User, perms []string, obj *models.ObjectRef) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, p := range perms {
		if m.grants[p] {
			continue
		}
		if obj != nil && m.grants[p+"@"+obj.ID] {
			continue
		}
		return false, nil
	}
	return true, nil
}
