package ledger

import (
	"errors"
	"fmt"
	"math"

	"pos-backend/internal/domain/model"
)

// BuildEntry の計算結果。台帳行に書く値の素。
type Entry struct {
	NewStock       int64
	SignedQuantity int64
}

// 減算が在庫を下回るときのエラー。要求量と在庫量の両方を持つ。
type InsufficientStockError struct {
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

var (
	// 種別が既知の3つ以外。本来はこの段階に来る前に弾かれる。
	ErrInvalidKind = errors.New("invalid adjustment kind")

	ErrInvalidQuantity = errors.New("invalid quantity")
)

// BuildEntry は現在在庫と調整要求から新しい在庫値と符号付き変化量を計算する。
// 純粋な計算のみでI/Oはしない。
//   - addition:    newStock = current + quantity
//   - subtraction: quantity > current なら InsufficientStockError
//   - correction:  quantity を新しい絶対値として扱う（signedは負や0にもなる）
func BuildEntry(current int64, quantity int64, kind model.AdjustmentKind) (Entry, error) {
	if current < 0 {
		return Entry{}, ErrInvalidQuantity
	}

	switch kind {
	case model.KindAddition:
		if quantity < 1 {
			return Entry{}, ErrInvalidQuantity
		}
		//int64が溢れるとnewStockが負になり、newStock >= 0 の不変条件が壊れる
		if quantity > math.MaxInt64-current {
			return Entry{}, ErrInvalidQuantity
		}
		return Entry{NewStock: current + quantity, SignedQuantity: quantity}, nil

	case model.KindSubtraction:
		if quantity < 1 {
			return Entry{}, ErrInvalidQuantity
		}
		if quantity > current {
			return Entry{}, &InsufficientStockError{Requested: quantity, Available: current}
		}
		return Entry{NewStock: current - quantity, SignedQuantity: -quantity}, nil

	case model.KindCorrection:
		if quantity < 0 {
			return Entry{}, ErrInvalidQuantity
		}
		return Entry{NewStock: quantity, SignedQuantity: quantity - current}, nil
	}

	return Entry{}, ErrInvalidKind
}
