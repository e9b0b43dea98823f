package usecase

import (
	"context"
	"errors"
	"time"

	"pos-backend/internal/domain/model"
	repo "pos-backend/internal/repository"
)

// resource:action をキーにした権限集合。
type PermissionSet map[string]struct{}

func permKey(resource, action string) string {
	return resource + ":" + action
}

func (s PermissionSet) Can(resource, action string) bool {
	_, ok := s[permKey(resource, action)]
	return ok
}

// 解決結果。Roleは上限判定などに使う代表ロール（最上位のもの）。
type Access struct {
	Permissions PermissionSet
	Role        model.RoleName
}

// ユーザーの有効な権限集合を解決する約束。
// どのバックエンドが答えたかを呼び出し側に見せない。
type PermissionResolver interface {
	Resolve(ctx context.Context, userID int64) (Access, error)
}

// バックエンドが答えを持っていないとき、次のバックエンドへ進む合図。
var errNoAnswer = errors.New("permission source has no answer")

// ロール順位。小さいほど上位。
var roleRank = map[model.RoleName]int{
	model.RoleSuperAdmin: 0,
	model.RoleAdmin:      1,
	model.RoleManager:    2,
	model.RoleCashier:    3,
	model.RoleViewer:     4,
}

func higherRole(a, b model.RoleName) model.RoleName {
	ra, aok := roleRank[a]
	rb, bok := roleRank[b]
	if !aok {
		return b
	}
	if !bok {
		return a
	}
	if ra <= rb {
		return a
	}
	return b
}

// リレーショナルのロールテーブルから解決するバックエンド。
// 有効（未失効）なロールの権限の和集合を返す。
type relationalResolver struct {
	roles repo.RoleRepository
	clock Clock
}

func (r *relationalResolver) Resolve(ctx context.Context, userID int64) (Access, error) {
	roles, err := r.roles.ActiveRolesByUser(ctx, userID, r.clock.Now())
	if err != nil {
		return Access{}, err
	}
	if len(roles) == 0 {
		//テーブル未整備。フォールバックに回す。
		return Access{}, errNoAnswer
	}

	perms := PermissionSet{}
	top := roles[0].Name
	for _, role := range roles {
		top = higherRole(top, role.Name)
		for _, p := range role.Permissions {
			perms[permKey(p.Resource, p.Action)] = struct{}{}
		}
	}
	return Access{Permissions: perms, Role: top}, nil
}

// アカウントメタデータのロール名から解決するバックエンド。
var metadataPermissions = map[model.RoleName][]string{
	model.RoleSuperAdmin: {"inventory:read", "inventory:update", "products:read", "products:update", "users:read", "users:update"},
	model.RoleAdmin:      {"inventory:read", "inventory:update", "products:read", "products:update", "users:read"},
	model.RoleManager:    {"inventory:read", "inventory:update", "products:read"},
	model.RoleCashier:    {"inventory:read", "inventory:update", "products:read"},
	model.RoleViewer:     {"inventory:read", "products:read"},
}

type metadataResolver struct {
	users repo.UserRepository
}

func (r *metadataResolver) Resolve(ctx context.Context, userID int64) (Access, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return Access{}, err
	}
	if user == nil || !user.IsActive {
		return Access{}, errNoAnswer
	}

	keys, ok := metadataPermissions[user.Role]
	if !ok {
		return Access{}, errNoAnswer
	}

	perms := PermissionSet{}
	for _, k := range keys {
		perms[k] = struct{}{}
	}
	return Access{Permissions: perms, Role: user.Role}, nil
}

// 固定順でバックエンドを試すチェーン。
// リレーショナル優先、空ならメタデータ。
type chainResolver struct {
	sources []PermissionResolver
}

func (r *chainResolver) Resolve(ctx context.Context, userID int64) (Access, error) {
	for _, src := range r.sources {
		access, err := src.Resolve(ctx, userID)
		if errors.Is(err, errNoAnswer) {
			continue
		}
		if err != nil {
			return Access{}, err
		}
		return access, nil
	}
	//どのバックエンドも答えなし＝権限なし
	return Access{Permissions: PermissionSet{}, Role: model.RoleViewer}, nil
}

// DI
func NewPermissionResolver(roles repo.RoleRepository, users repo.UserRepository, clock Clock) PermissionResolver {
	if clock == nil {
		clock = systemClock{}
	}
	return &chainResolver{
		sources: []PermissionResolver{
			&relationalResolver{roles: roles, clock: clock},
			&metadataResolver{users: users},
		},
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
