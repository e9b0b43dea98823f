package repository

import (
	"context"
	"time"

	"pos-backend/internal/domain/model"
)

// ロールとロール付与の取得を約束。
type RoleRepository interface {
	// ユーザーに付与された有効（未失効）なロールをPermissions込みで返す。
	// 1件も無ければ空スライス（エラーではない）。
	ActiveRolesByUser(ctx context.Context, userID int64, now time.Time) ([]model.Role, error)

	// ロール名から1件取得。
	FindByName(ctx context.Context, name model.RoleName) (model.Role, error)
}
