package model

import "time"

// 在庫調整の種別。
type AdjustmentKind string

const (
	//在庫を増やす
	KindAddition AdjustmentKind = "addition"
	//在庫を減らす
	KindSubtraction AdjustmentKind = "subtraction"
	//quantityを新しい絶対値として設定する
	KindCorrection AdjustmentKind = "correction"
)

// 既知の種別かどうか。
func (k AdjustmentKind) Valid() bool {
	switch k {
	case KindAddition, KindSubtraction, KindCorrection:
		return true
	}
	return false
}

// 在庫変更1件の監査台帳。
// 作成後は不変・削除しない。
// 不変条件: NewStock = PreviousStock + SignedQuantity、NewStock >= 0。
type StockLedger struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID int64  `gorm:"not null;index" json:"product_id"`
	//符号付きの適用量（方向を符号で表す）
	SignedQuantity int64          `gorm:"not null" json:"signed_quantity"`
	Kind           AdjustmentKind `gorm:"type:varchar(20);not null;index" json:"kind"`
	Reason         string         `gorm:"type:varchar(255);not null" json:"reason"`
	Notes          string         `gorm:"type:text" json:"notes,omitempty"`
	//外部トランザクションへの参照（任意）
	ReferenceID   *string   `gorm:"type:varchar(64)" json:"reference_id,omitempty"`
	UserID        int64     `gorm:"not null;index" json:"user_id"`
	PreviousStock int64     `gorm:"not null" json:"previous_stock"`
	NewStock      int64     `gorm:"not null" json:"new_stock"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}
