package realtime

import (
	"context"
	"strconv"
	"sync"

	"pos-backend/internal/domain/model"
	repo "pos-backend/internal/repository"

	"go.uber.org/zap"
)

// 表示用に正規化した在庫変動1件。
type Movement struct {
	ID            string               `json:"id"`
	ProductID     int64                `json:"product_id"`
	ProductName   string               `json:"product_name"`
	Kind          model.AdjustmentKind `json:"kind"`
	Quantity      int64                `json:"quantity"`
	PreviousStock int64                `json:"previous_stock"`
	NewStock      int64                `json:"new_stock"`
	Reason        string               `json:"reason"`
	ReferenceID   *string              `json:"reference_id,omitempty"`
	UserID        int64                `json:"user_id"`
	CreatedAt     string               `json:"created_at"`
}

// Projector はハブの生の台帳行を購読してUI向けのフィードに射影する。
// 商品名はキャッシュで解決し、ミス時はいったん生のIDを表示してから
// 名前が引けた時点で過去のエントリもまとめて埋め直す。
// フィードは新しい順・上限付き（古いものから追い出す）。
type Projector struct {
	mu     sync.Mutex
	feed   []Movement
	max    int
	names  *NameCache
	prods  repo.ProductRepository
	ledger repo.StockLedgerRepository
	cancel func()
	done   chan struct{}
	logger *zap.Logger
}

const DefaultFeedSize = 200

func NewProjector(
	hub *Hub,
	prods repo.ProductRepository,
	ledger repo.StockLedgerRepository,
	names *NameCache,
	max int,
	logger *zap.Logger,
) *Projector {
	if max <= 0 {
		max = DefaultFeedSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Projector{
		max:    max,
		names:  names,
		prods:  prods,
		ledger: ledger,
		done:   make(chan struct{}),
		logger: logger,
	}

	ch, cancel := hub.Subscribe(nil)
	p.cancel = cancel

	go p.run(ch)

	return p
}

func (p *Projector) run(ch <-chan model.StockLedger) {
	defer close(p.done)
	for row := range ch {
		p.project(row)
	}
}

// movementOf は台帳行を表示用に正規化する。
// 商品名キャッシュのヒット有無も返す（ミスなら生のIDが名前に入る）。
func (p *Projector) movementOf(row model.StockLedger) (Movement, bool) {
	mv := Movement{
		ID:            row.ID,
		ProductID:     row.ProductID,
		Kind:          row.Kind,
		Quantity:      row.SignedQuantity,
		PreviousStock: row.PreviousStock,
		NewStock:      row.NewStock,
		Reason:        row.Reason,
		ReferenceID:   row.ReferenceID,
		UserID:        row.UserID,
		CreatedAt:     row.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	name, hit := p.names.Get(row.ProductID)
	if hit {
		mv.ProductName = name
	} else {
		//名前が引けるまでは生のIDを出す
		mv.ProductName = strconv.FormatInt(row.ProductID, 10)
	}
	return mv, hit
}

func (p *Projector) project(row model.StockLedger) {
	mv, hit := p.movementOf(row)

	p.mu.Lock()
	p.feed = append([]Movement{mv}, p.feed...)
	if len(p.feed) > p.max {
		p.feed = p.feed[:p.max]
	}
	p.mu.Unlock()

	if !hit {
		//遅延エンリッチ。解決できたら過去分も埋め直す。
		go p.resolveName(row.ProductID)
	}
}

func (p *Projector) resolveName(productID int64) {
	prod, err := p.prods.FindByID(context.Background(), productID)
	if err != nil {
		p.logger.Warn("product name lookup failed",
			zap.Int64("product_id", productID), zap.Error(err))
		return
	}

	p.names.Set(productID, prod.Name)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.feed {
		if p.feed[i].ProductID == productID {
			p.feed[i].ProductName = prod.Name
		}
	}
}

// Feed は現在のフィードのコピーを返す（新しい順）。
func (p *Projector) Feed() []Movement {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Movement, len(p.feed))
	copy(out, p.feed)
	return out
}

// Refresh は台帳から最新の行を引き直してフィードを作り直す。
// オフラインキューの再送バッチ完了後に呼ばれる。
// 新しいフィードは脇で組み立てて1ロックで入れ替える。
// クリアしてから流し直すとハブ経由の行が二重に見える瞬間ができる。
func (p *Projector) Refresh(ctx context.Context) error {
	rows, _, err := p.ledger.List(ctx, repo.LedgerListQuery{Page: 1, Limit: p.max})
	if err != nil {
		return err
	}

	//Listは新しい順。フィードの並びと同じなのでそのまま写す。
	feed := make([]Movement, 0, len(rows))
	misses := map[int64]struct{}{}
	for _, row := range rows {
		mv, hit := p.movementOf(row)
		if !hit {
			misses[row.ProductID] = struct{}{}
		}
		feed = append(feed, mv)
	}

	p.mu.Lock()
	p.feed = feed
	p.mu.Unlock()

	for id := range misses {
		go p.resolveName(id)
	}
	return nil
}

// Close は購読を解除して射影ループを止める。
func (p *Projector) Close() {
	p.cancel()
	<-p.done
}
