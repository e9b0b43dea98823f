package realtime

import (
	"sync"

	"pos-backend/internal/domain/model"
)

const subscriberBuffer = 64

// コミット済みの台帳行をプロセス内で配信するハブ。
// グローバル購読と商品ID絞り込み購読の両方に対応する。
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	ch chan model.StockLedger
	//nilなら全件
	productID *int64
}

func NewHub() *Hub {
	return &Hub{subs: map[int]*subscription{}}
}

// Subscribe は配信チャネルと購読解除の関数を返す。
// productIDを渡すとその商品の行だけが届く。
func (h *Hub) Subscribe(productID *int64) (<-chan model.StockLedger, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	sub := &subscription{
		ch:        make(chan model.StockLedger, subscriberBuffer),
		productID: productID,
	}
	h.subs[id] = sub

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if s, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish は購読者へ行を配る。
// 追いつけない購読者にはブロックせず、その行を落とす。
func (h *Hub) Publish(row model.StockLedger) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if sub.productID != nil && *sub.productID != row.ProductID {
			continue
		}
		select {
		case sub.ch <- row:
		default:
		}
	}
}
