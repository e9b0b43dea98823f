package usecase

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"pos-backend/internal/domain/model"
	repo "pos-backend/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// 平文パスワードからハッシュへ。検証も。
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash string, plain string) error
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost: cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptPasswordHasher) Verify(hash string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// アクセストークンを発行する約束
type TokenIssuer interface {
	Issue(userID int64, role model.RoleName, tokenVersion int, now time.Time) (string, time.Time, error)
}

// AuthUsecase は会員登録とログイン。
type AuthUsecase struct {
	users  repo.UserRepository
	hasher PasswordHasher
	issuer TokenIssuer
	clock  Clock
}

// DI
func NewAuthUsecase(users repo.UserRepository, hasher PasswordHasher, issuer TokenIssuer, clock Clock) *AuthUsecase {
	return &AuthUsecase{users: users, hasher: hasher, issuer: issuer, clock: clock}
}

type RegisterInput struct {
	Email    string
	Password string
}

// 会員登録実行
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	// emailの形式チェック
	if !isValidEmailFormat(in.Email) {
		return model.User{}, NewHTTPError(http.StatusBadRequest, "invalid email format")
	}

	// password の長さチェック（最小12文字）
	if len(in.Password) < 12 {
		return model.User{}, NewHTTPError(http.StatusBadRequest, "password too short")
	}

	// email重複チェック
	existing, err := u.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return model.User{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if existing != nil {
		return model.User{}, NewHTTPError(http.StatusConflict, "email already exists")
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, NewHTTPError(http.StatusInternalServerError, "hash error")
	}

	now := u.clock.Now()
	user := model.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         model.RoleViewer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.Create(ctx, &user); err != nil {
		return model.User{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return user, nil
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
}

// ログイン実行
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	user, err := u.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if user == nil || !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	if err := u.hasher.Verify(user.PasswordHash, in.Password); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	now := u.clock.Now()
	token, expiresAt, err := u.issuer.Issue(user.ID, user.Role, user.TokenVersion, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	//最終ログイン時刻の更新（失敗してもログインは成立）
	user.LastLoginAt = &now
	user.UpdatedAt = now
	_ = u.users.Update(ctx, user)

	return LoginOutput{Token: token, ExpiresAt: expiresAt, UserID: user.ID}, nil
}

func isValidEmailFormat(email string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return false
	}
	return addr.Address == strings.TrimSpace(email)
}
