package offline

import (
	"context"
	"sync"
	"time"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/localstore"
	"pos-backend/internal/usecase"

	"go.uber.org/zap"
)

// ローカルストアのキー
const (
	StorageKey    = "inventory_offline_queue"
	DeadLetterKey = "inventory_offline_dead_letter"
)

const DefaultMaxReplayAttempts = 5

// オフライン中に積まれた調整要求1件。
type Item struct {
	ProductID   int64                `json:"product_id"`
	Quantity    int64                `json:"quantity"`
	Kind        model.AdjustmentKind `json:"kind"`
	Reason      string               `json:"reason"`
	Notes       string               `json:"notes,omitempty"`
	ReferenceID *string              `json:"reference_id,omitempty"`
	UserID      int64                `json:"user_id"`
	Role        model.RoleName       `json:"role"`
	QueuedAt    time.Time            `json:"queued_at"`
	//再送に失敗した回数
	Attempts int `json:"attempts"`
}

// 再送先。InventoryUsecaseが満たす。
type Replayer interface {
	Adjust(ctx context.Context, actor usecase.Actor, in usecase.AdjustInput) (usecase.AdjustOutput, error)
}

// 再送バッチ完了後にフィードを引き直す先。realtime.Projectorが満たす。
type FeedRefresher interface {
	Refresh(ctx context.Context) error
}

// Submit の結果。Queuedのときは完了ではなく「積んだ」ことの確認。
type SubmitResult struct {
	Queued bool                 `json:"queued"`
	Output usecase.AdjustOutput `json:"output,omitempty"`
}

// ネットワーク断の間の調整要求を順序付きで保持し、
// 復帰時に通常の調整パスへ順番に再送するキュー。
// 変更のたびに全体をローカルストアへ書く。
// 同じアイテムの二重再送は二重適用になる（再送は冪等ではない）。
// 規定回数失敗したアイテムはデッドレターへ退避し、後続を塞がない。
type Queue struct {
	mu          sync.Mutex
	items       []Item
	dead        []Item
	online      bool
	draining    bool
	store       *localstore.Store
	replay      Replayer
	refresher   FeedRefresher // nil可
	maxAttempts int
	logger      *zap.Logger
}

func NewQueue(store *localstore.Store, replay Replayer, refresher FeedRefresher, maxAttempts int, logger *zap.Logger) (*Queue, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxReplayAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		online:      true,
		store:       store,
		replay:      replay,
		refresher:   refresher,
		maxAttempts: maxAttempts,
		logger:      logger,
	}

	//前回セッションの積み残しを読み戻す
	if err := store.Load(StorageKey, &q.items); err != nil {
		return nil, err
	}
	if err := store.Load(DeadLetterKey, &q.dead); err != nil {
		return nil, err
	}

	return q, nil
}

func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Submit はオンラインなら即時に調整を流し、オフラインならキューへ積む。
// キューへ積んだ場合は完了ではなく「同期待ち」の確認が返る。
func (q *Queue) Submit(ctx context.Context, actor usecase.Actor, in usecase.AdjustInput) (SubmitResult, error) {
	if q.Online() {
		out, err := q.replay.Adjust(ctx, actor, in)
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Queued: false, Output: out}, nil
	}

	item := Item{
		ProductID:   in.ProductID,
		Quantity:    in.Quantity,
		Kind:        in.Kind,
		Reason:      in.Reason,
		Notes:       in.Notes,
		ReferenceID: in.ReferenceID,
		UserID:      actor.UserID,
		Role:        actor.Role,
		QueuedAt:    time.Now(),
	}
	if err := q.Enqueue(item); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Queued: true}, nil
}

// Enqueue は1件積んで全体を永続化する。
func (q *Queue) Enqueue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
	return q.store.Save(StorageKey, q.items)
}

// SetOnline は接続状態の遷移を受け取る。
// オフライン→オンラインの遷移で再送を走らせる。
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	q.mu.Unlock()

	if online && !wasOnline {
		q.drain(ctx)
	}
}

// drain は積まれたアイテムを積んだ順に1件ずつ再送する。
// 成功したものだけ取り除く。失敗は試行回数を増やして残し、
// 上限に達したらデッドレターへ移す（後続は止めない）。
// 再送はロックの外で行うので、再送中にSubmitされた分は先頭len(batch)件の
// 外側に積まれる。確定時はその分を残す。
func (q *Queue) drain(ctx context.Context) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	batch := make([]Item, len(q.items))
	copy(batch, q.items)
	q.mu.Unlock()

	if len(batch) == 0 {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
		return
	}

	var remaining, dead []Item
	replayed := 0

	for _, item := range batch {
		actor := usecase.Actor{UserID: item.UserID, Role: item.Role}
		in := usecase.AdjustInput{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Kind:        item.Kind,
			Reason:      item.Reason,
			Notes:       item.Notes,
			ReferenceID: item.ReferenceID,
		}

		if _, err := q.replay.Adjust(ctx, actor, in); err != nil {
			item.Attempts++
			if item.Attempts >= q.maxAttempts {
				q.logger.Warn("queued adjustment moved to dead letter",
					zap.Int64("product_id", item.ProductID),
					zap.Int("attempts", item.Attempts),
					zap.Error(err))
				dead = append(dead, item)
			} else {
				q.logger.Warn("queued adjustment replay failed, will retry",
					zap.Int64("product_id", item.ProductID),
					zap.Int("attempts", item.Attempts),
					zap.Error(err))
				remaining = append(remaining, item)
			}
			continue
		}
		replayed++
	}

	q.mu.Lock()
	//バッチ再送中に積まれた分（batchの後ろ）はそのまま残す
	q.items = append(remaining, q.items[len(batch):]...)
	q.dead = append(q.dead, dead...)
	if err := q.store.Save(StorageKey, q.items); err != nil {
		q.logger.Error("offline queue persist failed", zap.Error(err))
	}
	if err := q.store.Save(DeadLetterKey, q.dead); err != nil {
		q.logger.Error("dead letter persist failed", zap.Error(err))
	}
	pending := len(q.items)
	q.draining = false
	q.mu.Unlock()

	if q.refresher != nil {
		if err := q.refresher.Refresh(ctx); err != nil {
			q.logger.Warn("feed refresh after replay failed", zap.Error(err))
		}
	}

	q.logger.Info("offline queue drained",
		zap.Int("replayed", replayed),
		zap.Int("pending", pending),
		zap.Int("dead", len(dead)),
	)
}

// Pending は同期待ちのアイテム（コピー）。
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// DeadLetters は再送を諦めたアイテム（コピー）。
func (q *Queue) DeadLetters() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.dead))
	copy(out, q.dead)
	return out
}
