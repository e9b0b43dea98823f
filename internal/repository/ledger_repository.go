package repository

import (
	"context"
	"time"

	"pos-backend/internal/domain/model"
)

//台帳一覧の絞り込み条件。

type LedgerListQuery struct {
	Page      int
	Limit     int
	ProductID *int64
	UserID    *int64
	Kind      *model.AdjustmentKind
	DateFrom  *time.Time
	DateTo    *time.Time
}

// 在庫台帳の保存・一覧取得の約束。
// 行は追記のみ（更新・削除は提供しない）。
type StockLedgerRepository interface {
	//台帳行を1件保存
	Create(ctx context.Context, row model.StockLedger) error

	//条件で一覧取得（新しい順）。総件数も返す。
	List(ctx context.Context, q LedgerListQuery) ([]model.StockLedger, int64, error)
}
