package db

import (
	"pos-backend/internal/domain/model"

	"gorm.io/gorm"
)

// 組み込みロールに付与する権限。
// resource:action の組。
var builtinRolePermissions = map[model.RoleName][][2]string{
	model.RoleSuperAdmin: {
		{"inventory", "read"}, {"inventory", "update"},
		{"products", "read"}, {"products", "update"},
		{"users", "read"}, {"users", "update"},
	},
	model.RoleAdmin: {
		{"inventory", "read"}, {"inventory", "update"},
		{"products", "read"}, {"products", "update"},
		{"users", "read"},
	},
	model.RoleManager: {
		{"inventory", "read"}, {"inventory", "update"},
		{"products", "read"},
	},
	model.RoleCashier: {
		{"inventory", "read"}, {"inventory", "update"},
		{"products", "read"},
	},
	model.RoleViewer: {
		{"inventory", "read"},
		{"products", "read"},
	},
}

// SeedRoles は組み込みロールと権限を作成する。何度実行してもよい。
func SeedRoles(gormDB *gorm.DB) error {
	for name, pairs := range builtinRolePermissions {
		role := model.Role{Name: name, IsSystem: true}
		if err := gormDB.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}

		perms := make([]model.Permission, 0, len(pairs))
		for _, pair := range pairs {
			perm := model.Permission{
				Resource: pair[0],
				Action:   pair[1],
				Name:     pair[0] + ":" + pair[1],
			}
			if err := gormDB.Where("resource = ? AND action = ?", pair[0], pair[1]).
				FirstOrCreate(&perm).Error; err != nil {
				return err
			}
			perms = append(perms, perm)
		}

		if err := gormDB.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}
