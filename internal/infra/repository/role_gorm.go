package repository

import (
	"context"
	"errors"
	"time"

	"pos-backend/internal/domain/model"
	repo "pos-backend/internal/repository"

	"gorm.io/gorm"
)

type roleGormRepository struct {
	db *gorm.DB
}

func NewRoleGormRepository(db *gorm.DB) repo.RoleRepository {
	return &roleGormRepository{db: db}
}

// ユーザーの有効なロールをPermissions込みで返す
func (r *roleGormRepository) ActiveRolesByUser(ctx context.Context, userID int64, now time.Time) ([]model.Role, error) {
	var assignments []model.UserRole

	err := r.db.WithContext(ctx).
		Preload("Role.Permissions").
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}

	roles := make([]model.Role, 0, len(assignments))
	for _, a := range assignments {
		roles = append(roles, a.Role)
	}
	return roles, nil
}

func (r *roleGormRepository) FindByName(ctx context.Context, name model.RoleName) (model.Role, error) {
	var role model.Role

	err := r.db.WithContext(ctx).
		Preload("Permissions").
		Where("name = ?", name).
		First(&role).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Role{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Role{}, err
	}
	return role, nil
}
