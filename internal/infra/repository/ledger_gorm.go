package repository

import (
	"context"

	"pos-backend/internal/domain/model"
	repo "pos-backend/internal/repository"

	"gorm.io/gorm"
)

type LedgerGormRepository struct {
	db *gorm.DB
}

func NewLedgerGormRepository(db *gorm.DB) *LedgerGormRepository {
	return &LedgerGormRepository{db: db}
}

// 台帳行を1件保存（追記のみ）
func (r *LedgerGormRepository) Create(ctx context.Context, row model.StockLedger) error {
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	return nil
}

// 条件で一覧取得（新しい順）
func (r *LedgerGormRepository) List(ctx context.Context, q repo.LedgerListQuery) ([]model.StockLedger, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.StockLedger{})

	if q.ProductID != nil {
		base = base.Where("product_id = ?", *q.ProductID)
	}
	if q.UserID != nil {
		base = base.Where("user_id = ?", *q.UserID)
	}
	if q.Kind != nil {
		base = base.Where("kind = ?", *q.Kind)
	}
	if q.DateFrom != nil {
		base = base.Where("created_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		base = base.Where("created_at <= ?", *q.DateTo)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	var rows []model.StockLedger
	err := base.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
