package model

import "time"

// 権限の最小単位。resource:action の組で一意。
type Permission struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Resource string `gorm:"type:varchar(50);not null;uniqueIndex:idx_resource_action" json:"resource"`
	Action   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_resource_action" json:"action"`
	//"inventory:update" のような表示名
	Name      string    `gorm:"type:varchar(120);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// リレーショナルで管理するロール。
// 組み込みロール（IsSystem）は削除しない。
type Role struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        RoleName     `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"not null;default:false" json:"is_system"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ユーザーへのロール付与。期限付きにできる。
type UserRole struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`
	RoleID int64 `gorm:"not null;index" json:"role_id"`
	Role   Role  `gorm:"foreignKey:RoleID" json:"role"`
	//nullなら無期限
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
