package ledger_test

import (
	"errors"
	"math"
	"testing"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/ledger"

	"github.com/stretchr/testify/assert"
)

func TestBuildEntry_Addition(t *testing.T) {
	e, err := ledger.BuildEntry(20, 10, model.KindAddition)
	assert.NoError(t, err)
	assert.Equal(t, int64(30), e.NewStock)
	assert.Equal(t, int64(10), e.SignedQuantity)
}

func TestBuildEntry_Subtraction(t *testing.T) {
	e, err := ledger.BuildEntry(20, 5, model.KindSubtraction)
	assert.NoError(t, err)
	assert.Equal(t, int64(15), e.NewStock)
	assert.Equal(t, int64(-5), e.SignedQuantity)
}

// 在庫20に対する25の減算は拒否。要求量と在庫量の両方がエラーに入る。
func TestBuildEntry_Subtraction_Insufficient(t *testing.T) {
	_, err := ledger.BuildEntry(20, 25, model.KindSubtraction)

	var ise *ledger.InsufficientStockError
	assert.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(25), ise.Requested)
	assert.Equal(t, int64(20), ise.Available)
	assert.Contains(t, err.Error(), "25")
	assert.Contains(t, err.Error(), "20")
}

func TestBuildEntry_Subtraction_ExactStock(t *testing.T) {
	e, err := ledger.BuildEntry(20, 20, model.KindSubtraction)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), e.NewStock)
	assert.Equal(t, int64(-20), e.SignedQuantity)
}

// correctionはquantityを新しい絶対値として扱う
func TestBuildEntry_Correction(t *testing.T) {
	e, err := ledger.BuildEntry(20, 5, model.KindCorrection)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), e.NewStock)
	assert.Equal(t, int64(-15), e.SignedQuantity)

	e, err = ledger.BuildEntry(3, 10, model.KindCorrection)
	assert.NoError(t, err)
	assert.Equal(t, int64(10), e.NewStock)
	assert.Equal(t, int64(7), e.SignedQuantity)
}

// 現在値と同じ値への補正もエラーではない（signedは0）
func TestBuildEntry_Correction_SameValue(t *testing.T) {
	e, err := ledger.BuildEntry(20, 20, model.KindCorrection)
	assert.NoError(t, err)
	assert.Equal(t, int64(20), e.NewStock)
	assert.Equal(t, int64(0), e.SignedQuantity)
}

// int64を溢れる加算は拒否（newStockが負になってはいけない）
func TestBuildEntry_Addition_Overflow(t *testing.T) {
	_, err := ledger.BuildEntry(math.MaxInt64-1, 2, model.KindAddition)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	//境界ちょうどは通る
	e, err := ledger.BuildEntry(math.MaxInt64-1, 1, model.KindAddition)
	assert.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), e.NewStock)
}

func TestBuildEntry_InvalidKind(t *testing.T) {
	_, err := ledger.BuildEntry(20, 5, model.AdjustmentKind("transfer"))
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)
}

func TestBuildEntry_InvalidQuantity(t *testing.T) {
	_, err := ledger.BuildEntry(20, 0, model.KindAddition)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = ledger.BuildEntry(20, -1, model.KindSubtraction)
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	//correctionは0への補正を許す
	e, err := ledger.BuildEntry(20, 0, model.KindCorrection)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), e.NewStock)
}
