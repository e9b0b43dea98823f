package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/localstore"
	repo "pos-backend/internal/repository"

	"go.uber.org/zap"
)

// ローカルストアのキー
const StorageKey = "catalog_cart"

const (
	//1商品あたりの数量上限
	MaxQuantityPerProduct int64 = 10
	//カート全体の数量上限
	MaxTotalItems int64 = 50
)

var (
	//非公開・在庫ゼロの商品
	ErrNotAvailable = errors.New("product not available")
	//全体上限を超える追加要求
	ErrCartFull = fmt.Errorf("cart is full: max %d items", MaxTotalItems)

	ErrItemNotFound = errors.New("cart item not found")
)

// カートに載せる時点の商品スナップショット。
type ProductSnapshot struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	OfferPrice *int64 `json:"offer_price,omitempty"`
	Stock      int64  `json:"stock"`
	ImageURL   string `json:"image_url"`
	IsActive   bool   `json:"is_active"`
}

type Item struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int64           `json:"quantity"`
}

// 数量が丸められたときの通知。丸めは必ず通知と対で起きる。
type NoticeCode string

const (
	NoticeNone NoticeCode = ""
	//在庫不足で丸めた
	NoticeLimitedByStock NoticeCode = "limited_by_stock"
	//1商品あたりの上限で丸めた
	NoticeLimitedByCap NoticeCode = "limited_by_product_cap"
)

type Notice struct {
	Code    NoticeCode `json:"code"`
	Message string     `json:"message"`
}

// Reconciler はカートの数量を商品在庫と上限に合わせて調整する。
// 変更のたびに全体をローカルストアへ書き、購読中の別セッションへ
// カート全体を配る。受信側は丸ごと上書き（last-writer-wins）。
type Reconciler struct {
	mu       sync.Mutex
	items    []Item
	store    *localstore.Store
	products repo.ProductRepository
	subs     map[int]chan []Item
	nextSub  int
	logger   *zap.Logger
}

func NewReconciler(store *localstore.Store, products repo.ProductRepository, logger *zap.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Reconciler{
		store:    store,
		products: products,
		subs:     map[int]chan []Item{},
		logger:   logger,
	}

	if err := store.Load(StorageKey, &r.items); err != nil {
		return nil, err
	}
	return r, nil
}

// Add は商品をカートへ追加する。
// 非公開・在庫ゼロは拒否。全体上限超過も拒否。
// 数量は min(既存+要求, 在庫, 商品上限) に丸め、丸めたら通知を返す。
func (r *Reconciler) Add(ctx context.Context, productID int64, quantity int64) (Notice, error) {
	if quantity < 1 {
		return Notice{}, fmt.Errorf("invalid quantity: %d", quantity)
	}

	p, err := r.products.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return Notice{}, ErrNotAvailable
	}
	if err != nil {
		return Notice{}, err
	}
	if !p.IsActive || p.Stock == 0 {
		return Notice{}, ErrNotAvailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	//全体上限のチェック（丸める前の要求量で判定して、超えるなら丸めず拒否）
	if r.totalQuantityLocked()+quantity > MaxTotalItems {
		return Notice{}, ErrCartFull
	}

	var existing int64
	idx := -1
	for i, it := range r.items {
		if it.Product.ID == productID {
			existing = it.Quantity
			idx = i
			break
		}
	}

	target, notice := clampQuantity(existing+quantity, p.Stock)

	snap := snapshotOf(p)
	if idx >= 0 {
		r.items[idx].Product = snap
		r.items[idx].Quantity = target
	} else {
		r.items = append(r.items, Item{Product: snap, Quantity: target})
	}

	r.persistAndBroadcastLocked()
	return notice, nil
}

// UpdateQuantity は明細の数量を変更する。Addと同じ丸めを適用する。
func (r *Reconciler) UpdateQuantity(ctx context.Context, productID int64, quantity int64) (Notice, error) {
	if quantity < 1 {
		return Notice{}, fmt.Errorf("invalid quantity: %d", quantity)
	}

	p, err := r.products.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return Notice{}, ErrNotAvailable
	}
	if err != nil {
		return Notice{}, err
	}
	if !p.IsActive || p.Stock == 0 {
		return Notice{}, ErrNotAvailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, it := range r.items {
		if it.Product.ID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Notice{}, ErrItemNotFound
	}

	//他の明細との合計が全体上限に収まるか
	others := r.totalQuantityLocked() - r.items[idx].Quantity
	if others+quantity > MaxTotalItems {
		return Notice{}, ErrCartFull
	}

	target, notice := clampQuantity(quantity, p.Stock)

	r.items[idx].Product = snapshotOf(p)
	r.items[idx].Quantity = target

	r.persistAndBroadcastLocked()
	return notice, nil
}

// Remove は明細を取り除く。
func (r *Reconciler) Remove(productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, it := range r.items {
		if it.Product.ID == productID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			r.persistAndBroadcastLocked()
			return nil
		}
	}
	return ErrItemNotFound
}

// Items は現在のカートのコピー。
func (r *Reconciler) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Reconciler) TotalQuantity() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalQuantityLocked()
}

// Subscribe は変更のたびにカート全体が届くチャネルと解除関数を返す。
func (r *Reconciler) Subscribe() (<-chan []Item, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan []Item, 8)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// ApplyRemote は別セッションからの配信でカートを丸ごと置き換える。
// マージはしない（last-writer-wins）。再配信もしない。
func (r *Reconciler) ApplyRemote(items []Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]Item, len(items))
	copy(r.items, items)

	if err := r.store.Save(StorageKey, r.items); err != nil {
		r.logger.Error("cart persist failed", zap.Error(err))
	}
}

func (r *Reconciler) totalQuantityLocked() int64 {
	var total int64
	for _, it := range r.items {
		total += it.Quantity
	}
	return total
}

func (r *Reconciler) persistAndBroadcastLocked() {
	if err := r.store.Save(StorageKey, r.items); err != nil {
		r.logger.Error("cart persist failed", zap.Error(err))
	}

	snapshot := make([]Item, len(r.items))
	copy(snapshot, r.items)

	for _, ch := range r.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// 要求数量を在庫と商品上限に丸める。丸めたら理由つきの通知を返す。
func clampQuantity(requested int64, stock int64) (int64, Notice) {
	target := requested
	code := NoticeNone

	if target > stock {
		target = stock
		code = NoticeLimitedByStock
	}
	if target > MaxQuantityPerProduct {
		target = MaxQuantityPerProduct
		code = NoticeLimitedByCap
	}

	switch code {
	case NoticeLimitedByStock:
		return target, Notice{
			Code:    code,
			Message: fmt.Sprintf("stock insufficient: only %d available", stock),
		}
	case NoticeLimitedByCap:
		return target, Notice{
			Code:    code,
			Message: fmt.Sprintf("quantity limited to %d per product", MaxQuantityPerProduct),
		}
	}
	return target, Notice{}
}

func snapshotOf(p model.Product) ProductSnapshot {
	return ProductSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		OfferPrice: p.OfferPrice,
		Stock:      p.Stock,
		ImageURL:   p.ImageURL,
		IsActive:   p.IsActive,
	}
}
