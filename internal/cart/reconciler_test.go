package cart_test

import (
	"context"
	"testing"

	"pos-backend/internal/cart"
	"pos-backend/internal/domain/model"
	"pos-backend/internal/localstore"
	repo "pos-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type CartProductRepoMock struct{ mock.Mock }

func (m *CartProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *CartProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	panic("not used in Reconciler tests")
}

func (m *CartProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	panic("not used in Reconciler tests")
}

func (m *CartProductRepoMock) Update(ctx context.Context, p model.Product) error {
	panic("not used in Reconciler tests")
}

func (m *CartProductRepoMock) SoftDelete(ctx context.Context, id int64) error {
	panic("not used in Reconciler tests")
}

func product(id int64, stock int64) model.Product {
	return model.Product{ID: id, Name: "チョコ", SKU: "SKU", Price: 100, Stock: stock, IsActive: true}
}

func newReconcilerForTest(t *testing.T, products *CartProductRepoMock) *cart.Reconciler {
	t.Helper()
	store, err := localstore.New(t.TempDir())
	assert.NoError(t, err)
	r, err := cart.NewReconciler(store, products, nil)
	assert.NoError(t, err)
	return r
}

func TestReconciler_Add(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 20), nil)

	r := newReconcilerForTest(t, products)

	notice, err := r.Add(context.Background(), 7, 2)
	assert.NoError(t, err)
	assert.Equal(t, cart.NoticeNone, notice.Code)

	items := r.Items()
	assert.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.Equal(t, "チョコ", items[0].Product.Name)
}

// 在庫3の商品に5を要求すると3に丸められ、通知が返る
func TestReconciler_Add_LimitedByStock(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 3), nil)

	r := newReconcilerForTest(t, products)

	notice, err := r.Add(context.Background(), 7, 5)
	assert.NoError(t, err)
	assert.Equal(t, cart.NoticeLimitedByStock, notice.Code)
	assert.Contains(t, notice.Message, "only 3 available")

	assert.Equal(t, int64(3), r.Items()[0].Quantity)
}

// 既存と合わせて1商品上限を超える分は10に丸められる
func TestReconciler_Add_LimitedByProductCap(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 100), nil)

	r := newReconcilerForTest(t, products)

	_, err := r.Add(context.Background(), 7, 8)
	assert.NoError(t, err)

	notice, err := r.Add(context.Background(), 7, 8)
	assert.NoError(t, err)
	assert.Equal(t, cart.NoticeLimitedByCap, notice.Code)

	items := r.Items()
	assert.Len(t, items, 1)
	assert.Equal(t, cart.MaxQuantityPerProduct, items[0].Quantity)
}

// 全体上限を超える追加は丸めずに拒否
func TestReconciler_Add_CartFull(t *testing.T) {
	products := new(CartProductRepoMock)
	for id := int64(1); id <= 5; id++ {
		products.On("FindByID", mock.Anything, id).Return(product(id, 100), nil)
	}
	products.On("FindByID", mock.Anything, int64(6)).Return(product(6, 100), nil)

	r := newReconcilerForTest(t, products)

	//10×5=50で全体上限ちょうど
	for id := int64(1); id <= 5; id++ {
		_, err := r.Add(context.Background(), id, 10)
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(50), r.TotalQuantity())

	_, err := r.Add(context.Background(), 6, 1)
	assert.ErrorIs(t, err, cart.ErrCartFull)
	assert.Len(t, r.Items(), 5)
}

// 非公開・在庫ゼロは拒否
func TestReconciler_Add_NotAvailable(t *testing.T) {
	products := new(CartProductRepoMock)
	inactive := product(1, 10)
	inactive.IsActive = false
	products.On("FindByID", mock.Anything, int64(1)).Return(inactive, nil)
	products.On("FindByID", mock.Anything, int64(2)).Return(product(2, 0), nil)
	products.On("FindByID", mock.Anything, int64(3)).Return(model.Product{}, repo.ErrNotFound)

	r := newReconcilerForTest(t, products)

	for id := int64(1); id <= 3; id++ {
		_, err := r.Add(context.Background(), id, 1)
		assert.ErrorIs(t, err, cart.ErrNotAvailable)
	}
	assert.Empty(t, r.Items())
}

func TestReconciler_UpdateQuantity(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 4), nil)

	r := newReconcilerForTest(t, products)
	_, err := r.Add(context.Background(), 7, 2)
	assert.NoError(t, err)

	//在庫4に7を要求 → 4に丸め
	notice, err := r.UpdateQuantity(context.Background(), 7, 7)
	assert.NoError(t, err)
	assert.Equal(t, cart.NoticeLimitedByStock, notice.Code)
	assert.Equal(t, int64(4), r.Items()[0].Quantity)

	//カートに無い商品は404相当
	_, err = r.UpdateQuantity(context.Background(), 99, 1)
	assert.Error(t, err)
}

func TestReconciler_Remove(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 20), nil)

	r := newReconcilerForTest(t, products)
	_, err := r.Add(context.Background(), 7, 2)
	assert.NoError(t, err)

	assert.NoError(t, r.Remove(7))
	assert.Empty(t, r.Items())

	assert.ErrorIs(t, r.Remove(7), cart.ErrItemNotFound)
}

// 変更のたびに購読者へカート全体が届く
func TestReconciler_SubscribeBroadcast(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 20), nil)

	r := newReconcilerForTest(t, products)

	ch, cancel := r.Subscribe()
	defer cancel()

	_, err := r.Add(context.Background(), 7, 2)
	assert.NoError(t, err)

	got := <-ch
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Quantity)
}

// 別セッションからの配信は丸ごと上書きで、再配信しない
func TestReconciler_ApplyRemote(t *testing.T) {
	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 20), nil)

	r := newReconcilerForTest(t, products)
	_, err := r.Add(context.Background(), 7, 2)
	assert.NoError(t, err)

	ch, cancel := r.Subscribe()
	defer cancel()

	remote := []cart.Item{{Product: cart.ProductSnapshot{ID: 8, Name: "ガム", IsActive: true, Stock: 5}, Quantity: 1}}
	r.ApplyRemote(remote)

	items := r.Items()
	assert.Len(t, items, 1)
	assert.Equal(t, int64(8), items[0].Product.ID)

	//ApplyRemoteは購読者へ流さない（エコーループ防止）
	assert.Len(t, ch, 0)
}

// カートはプロセスをまたいで読み戻される
func TestReconciler_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.New(dir)
	assert.NoError(t, err)

	products := new(CartProductRepoMock)
	products.On("FindByID", mock.Anything, int64(7)).Return(product(7, 20), nil)

	first, err := cart.NewReconciler(store, products, nil)
	assert.NoError(t, err)
	_, err = first.Add(context.Background(), 7, 2)
	assert.NoError(t, err)

	second, err := cart.NewReconciler(store, products, nil)
	assert.NoError(t, err)

	items := second.Items()
	assert.Len(t, items, 1)
	assert.Equal(t, int64(7), items[0].Product.ID)
	assert.Equal(t, int64(2), items[0].Quantity)
}
