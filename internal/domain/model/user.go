package model

import "time"

// アカウントメタデータに記録されるロール名。
// ロールテーブルが未整備の環境ではこちらをフォールバックとして使う。
type RoleName string

const (
	RoleSuperAdmin RoleName = "SUPER_ADMIN"
	RoleAdmin      RoleName = "ADMIN"
	RoleManager    RoleName = "MANAGER"
	RoleCashier    RoleName = "CASHIER"
	RoleViewer     RoleName = "VIEWER"
)

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	//user_rolesが空のときのフォールバックロール
	Role         RoleName `gorm:"type:varchar(20);not null;default:'VIEWER'"`
	TokenVersion int      `gorm:"not null;default:0"`
	IsActive     bool     `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
