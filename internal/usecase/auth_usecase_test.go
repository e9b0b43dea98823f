package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type AuthUserRepoMock struct{ mock.Mock }

func (m *AuthUserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *AuthUserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *AuthUserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *AuthUserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *AuthUserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// ハッシュ化は平文に接頭辞をつけるだけのフェイク
type hasherFake struct{ verifyErr error }

func (h hasherFake) Hash(plain string) (string, error) { return "hash:" + plain, nil }
func (h hasherFake) Verify(hash string, plain string) error {
	if h.verifyErr != nil {
		return h.verifyErr
	}
	if hash != "hash:"+plain {
		return errors.New("mismatch")
	}
	return nil
}

type issuerFake struct{ err error }

func (i issuerFake) Issue(userID int64, role model.RoleName, tokenVersion int, now time.Time) (string, time.Time, error) {
	if i.err != nil {
		return "", time.Time{}, i.err
	}
	return "token", now.Add(15 * time.Minute), nil
}

func TestAuthUsecase_Register_Success(t *testing.T) {
	users := new(AuthUserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").Return((*model.User)(nil), nil)
	users.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewAuthUsecase(users, hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	user, err := uc.Register(context.Background(), usecase.RegisterInput{
		Email:    "taro@example.com",
		Password: "secret-password-123",
	})

	assert.NoError(t, err)
	assert.Equal(t, "taro@example.com", user.Email)
	assert.Equal(t, "hash:secret-password-123", user.PasswordHash)
	//初期ロールは閲覧のみ
	assert.Equal(t, model.RoleViewer, user.Role)
	assert.True(t, user.IsActive)
	users.AssertExpectations(t)
}

func TestAuthUsecase_Register_InvalidEmail(t *testing.T) {
	uc := usecase.NewAuthUsecase(new(AuthUserRepoMock), hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	_, err := uc.Register(context.Background(), usecase.RegisterInput{
		Email:    "not-an-email",
		Password: "secret-password-123",
	})
	assertHTTPError(t, err, http.StatusBadRequest, "invalid email")
}

func TestAuthUsecase_Register_PasswordTooShort(t *testing.T) {
	uc := usecase.NewAuthUsecase(new(AuthUserRepoMock), hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	_, err := uc.Register(context.Background(), usecase.RegisterInput{
		Email:    "taro@example.com",
		Password: "short",
	})
	assertHTTPError(t, err, http.StatusBadRequest, "password too short")
}

func TestAuthUsecase_Register_DuplicateEmail(t *testing.T) {
	users := new(AuthUserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").Return(&model.User{ID: 1}, nil)

	uc := usecase.NewAuthUsecase(users, hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	_, err := uc.Register(context.Background(), usecase.RegisterInput{
		Email:    "taro@example.com",
		Password: "secret-password-123",
	})
	assertHTTPError(t, err, http.StatusConflict, "email already exists")
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthUsecase_Login_Success(t *testing.T) {
	users := new(AuthUserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").Return(&model.User{
		ID:           3,
		Email:        "taro@example.com",
		PasswordHash: "hash:secret-password-123",
		Role:         model.RoleCashier,
		TokenVersion: 1,
		IsActive:     true,
	}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewAuthUsecase(users, hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	out, err := uc.Login(context.Background(), usecase.LoginInput{
		Email:    "Taro@Example.com", //大文字小文字は吸収
		Password: "secret-password-123",
	})

	assert.NoError(t, err)
	assert.Equal(t, "token", out.Token)
	assert.Equal(t, int64(3), out.UserID)
	assert.Equal(t, testNow.Add(15*time.Minute), out.ExpiresAt)
}

func TestAuthUsecase_Login_WrongPassword(t *testing.T) {
	users := new(AuthUserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").Return(&model.User{
		ID: 3, PasswordHash: "hash:other", IsActive: true,
	}, nil)

	uc := usecase.NewAuthUsecase(users, hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	_, err := uc.Login(context.Background(), usecase.LoginInput{
		Email:    "taro@example.com",
		Password: "secret-password-123",
	})
	assertHTTPError(t, err, http.StatusUnauthorized, "invalid credentials")
}

// 未登録と無効化済みはどちらも同じ401（存在の有無を教えない）
func TestAuthUsecase_Login_UnknownOrInactive(t *testing.T) {
	users := new(AuthUserRepoMock)
	users.On("FindByEmail", mock.Anything, "ghost@example.com").Return((*model.User)(nil), nil)
	users.On("FindByEmail", mock.Anything, "gone@example.com").Return(&model.User{
		ID: 4, PasswordHash: "hash:secret-password-123", IsActive: false,
	}, nil)

	uc := usecase.NewAuthUsecase(users, hasherFake{}, issuerFake{}, fixedClock{t: testNow})

	_, err := uc.Login(context.Background(), usecase.LoginInput{Email: "ghost@example.com", Password: "secret-password-123"})
	assertHTTPError(t, err, http.StatusUnauthorized, "invalid credentials")

	_, err = uc.Login(context.Background(), usecase.LoginInput{Email: "gone@example.com", Password: "secret-password-123"})
	assertHTTPError(t, err, http.StatusUnauthorized, "invalid credentials")
}
