package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type PermRoleRepoMock struct{ mock.Mock }

func (m *PermRoleRepoMock) ActiveRolesByUser(ctx context.Context, userID int64, now time.Time) ([]model.Role, error) {
	args := m.Called(ctx, userID, now)
	roles, _ := args.Get(0).([]model.Role)
	return roles, args.Error(1)
}

func (m *PermRoleRepoMock) FindByName(ctx context.Context, name model.RoleName) (model.Role, error) {
	panic("not used in PermissionResolver tests")
}

type PermUserRepoMock struct{ mock.Mock }

func (m *PermUserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *PermUserRepoMock) Create(ctx context.Context, user *model.User) error {
	panic("not used in PermissionResolver tests")
}

func (m *PermUserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	panic("not used in PermissionResolver tests")
}

func (m *PermUserRepoMock) Update(ctx context.Context, user *model.User) error {
	panic("not used in PermissionResolver tests")
}

func (m *PermUserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	panic("not used in PermissionResolver tests")
}

func perm(resource, action string) model.Permission {
	return model.Permission{Resource: resource, Action: action, Name: resource + ":" + action}
}

// リレーショナルに行があればメタデータは見ない
func TestPermissionResolver_RelationalPreferred(t *testing.T) {
	roles := new(PermRoleRepoMock)
	users := new(PermUserRepoMock)

	roles.On("ActiveRolesByUser", mock.Anything, int64(3), testNow).Return([]model.Role{
		{
			Name:        model.RoleManager,
			Permissions: []model.Permission{perm("inventory", "read"), perm("inventory", "update")},
		},
	}, nil)

	r := usecase.NewPermissionResolver(roles, users, fixedClock{t: testNow})

	access, err := r.Resolve(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, model.RoleManager, access.Role)
	assert.True(t, access.Permissions.Can("inventory", "update"))
	assert.False(t, access.Permissions.Can("users", "update"))

	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// 複数ロールは権限の和集合、代表ロールは最上位
func TestPermissionResolver_MultipleRolesUnion(t *testing.T) {
	roles := new(PermRoleRepoMock)
	users := new(PermUserRepoMock)

	roles.On("ActiveRolesByUser", mock.Anything, int64(3), testNow).Return([]model.Role{
		{Name: model.RoleViewer, Permissions: []model.Permission{perm("products", "read")}},
		{Name: model.RoleManager, Permissions: []model.Permission{perm("inventory", "update")}},
	}, nil)

	r := usecase.NewPermissionResolver(roles, users, fixedClock{t: testNow})

	access, err := r.Resolve(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, model.RoleManager, access.Role)
	assert.True(t, access.Permissions.Can("products", "read"))
	assert.True(t, access.Permissions.Can("inventory", "update"))
}

// ロールテーブルが空ならアカウントのロール名から解決する
func TestPermissionResolver_MetadataFallback(t *testing.T) {
	roles := new(PermRoleRepoMock)
	users := new(PermUserRepoMock)

	roles.On("ActiveRolesByUser", mock.Anything, int64(3), testNow).Return([]model.Role{}, nil)
	users.On("FindByID", mock.Anything, int64(3)).Return(&model.User{
		ID: 3, Role: model.RoleCashier, IsActive: true,
	}, nil)

	r := usecase.NewPermissionResolver(roles, users, fixedClock{t: testNow})

	access, err := r.Resolve(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, model.RoleCashier, access.Role)
	assert.True(t, access.Permissions.Can("inventory", "update"))
	assert.False(t, access.Permissions.Can("users", "read"))
}

// どちらも答えなしなら空集合＋VIEWER（エラーにはしない）
func TestPermissionResolver_NoAnswer(t *testing.T) {
	roles := new(PermRoleRepoMock)
	users := new(PermUserRepoMock)

	roles.On("ActiveRolesByUser", mock.Anything, int64(3), testNow).Return([]model.Role{}, nil)
	users.On("FindByID", mock.Anything, int64(3)).Return((*model.User)(nil), nil)

	r := usecase.NewPermissionResolver(roles, users, fixedClock{t: testNow})

	access, err := r.Resolve(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, model.RoleViewer, access.Role)
	assert.False(t, access.Permissions.Can("inventory", "read"))
}

// 無効化されたアカウントはメタデータ解決の対象外
func TestPermissionResolver_InactiveUserSkipped(t *testing.T) {
	roles := new(PermRoleRepoMock)
	users := new(PermUserRepoMock)

	roles.On("ActiveRolesByUser", mock.Anything, int64(3), testNow).Return([]model.Role{}, nil)
	users.On("FindByID", mock.Anything, int64(3)).Return(&model.User{
		ID: 3, Role: model.RoleAdmin, IsActive: false,
	}, nil)

	r := usecase.NewPermissionResolver(roles, users, fixedClock{t: testNow})

	access, err := r.Resolve(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, model.RoleViewer, access.Role)
	assert.False(t, access.Permissions.Can("inventory", "update"))
}

// バックエンドの本当のエラーはフォールバックせず呼び出し側へ返す
func TestPermissionResolver_BackendError(t *testing.T) {
	roles := new(PermRoleRepoMock)
	users := new(PermUserRepoMock)

	dbErr := errors.New("connection refused")
	roles.On("ActiveRolesByUser", mock.Anything, int64(3), testNow).Return(([]model.Role)(nil), dbErr)

	r := usecase.NewPermissionResolver(roles, users, fixedClock{t: testNow})

	_, err := r.Resolve(context.Background(), 3)
	assert.ErrorIs(t, err, dbErr)
	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
