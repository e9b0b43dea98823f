package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pos-backend/internal/domain/model"
	"pos-backend/internal/ledger"
	repo "pos-backend/internal/repository"

	"go.uber.org/zap"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// コミット済みの台帳行を購読者へ流す約束。
// realtime.Hub が実装する。
type MovementPublisher interface {
	Publish(row model.StockLedger)
}

// InventoryUsecase は /inventory/adjust の業務ロジックです。
// apply→record の順で永続化し、recordに失敗したら在庫を書き戻す（補償）。
// TransactionManager が注入されていれば両書き込みを1トランザクションにまとめる。
type InventoryUsecase struct {
	tx        repo.TransactionManager // nilなら補償パス
	products  repo.ProductRepository
	inventory repo.InventoryRepository
	ledgerRep repo.StockLedgerRepository
	audits    repo.AuditLogRepository
	gate      *ledger.Gate
	publisher MovementPublisher // nil可
	idGen     IDGenerator
	clock     Clock
	logger    *zap.Logger
}

// DI
func NewInventoryUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	inventory repo.InventoryRepository,
	ledgerRep repo.StockLedgerRepository,
	audits repo.AuditLogRepository,
	gate *ledger.Gate,
	publisher MovementPublisher,
	idGen IDGenerator,
	clock Clock,
	logger *zap.Logger,
) *InventoryUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryUsecase{
		tx:        tx,
		products:  products,
		inventory: inventory,
		ledgerRep: ledgerRep,
		audits:    audits,
		gate:      gate,
		publisher: publisher,
		idGen:     idGen,
		clock:     clock,
		logger:    logger,
	}
}

// 操作者。ロールはPermissionResolverが解決したもの。
type Actor struct {
	UserID int64
	Role   model.RoleName
}

type AdjustInput struct {
	ProductID   int64
	Quantity    int64
	Kind        model.AdjustmentKind
	Reason      string
	Notes       string
	ReferenceID *string
}

// レスポンス用の商品サマリ
type ProductSummary struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	PreviousStock int64  `json:"previous_stock"`
	NewStock      int64  `json:"new_stock"`
}

type AdjustOutput struct {
	Adjustment model.StockLedger `json:"adjustment"`
	Product    ProductSummary    `json:"product"`
}

// Adjust は在庫調整を1件適用する。
// 検証 → ロール上限ゲート → 計算 → 永続化（在庫更新＋台帳追記＋監査ログ）。
func (u *InventoryUsecase) Adjust(ctx context.Context, actor Actor, in AdjustInput) (AdjustOutput, error) {
	if actor.UserID <= 0 {
		return AdjustOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return AdjustOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if !in.Kind.Valid() {
		return AdjustOutput{}, NewHTTPError(http.StatusBadRequest, "invalid type")
	}
	if in.Kind == model.KindCorrection {
		if in.Quantity < 0 {
			return AdjustOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	} else if in.Quantity < 1 {
		return AdjustOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return AdjustOutput{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}

	//商品取得（無ければ何も書かずに404）
	p, err := u.products.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return AdjustOutput{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return AdjustOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//ロール上限ゲート。拒否も監査証跡に残す。
	if err := u.gate.Authorize(actor.Role, in.Quantity); err != nil {
		var le *ledger.LimitExceededError
		if errors.As(err, &le) {
			u.recordDenial(ctx, actor, in, le)
			return AdjustOutput{}, NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("adjustment limit exceeded: requested %d, max allowed %d", le.Requested, le.Ceiling))
		}
		return AdjustOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	//新在庫と符号付き変化量の計算（純粋）
	entry, err := ledger.BuildEntry(p.Stock, in.Quantity, in.Kind)
	if err != nil {
		var ise *ledger.InsufficientStockError
		if errors.As(err, &ise) {
			return AdjustOutput{}, NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("insufficient stock: requested %d, available %d", ise.Requested, ise.Available))
		}
		return AdjustOutput{}, NewHTTPError(http.StatusBadRequest, "invalid adjustment")
	}

	now := u.clock.Now()
	row := model.StockLedger{
		ID:             u.idGen.NewID(),
		ProductID:      p.ID,
		SignedQuantity: entry.SignedQuantity,
		Kind:           in.Kind,
		Reason:         strings.TrimSpace(in.Reason),
		Notes:          in.Notes,
		ReferenceID:    in.ReferenceID,
		UserID:         actor.UserID,
		PreviousStock:  p.Stock,
		NewStock:       entry.NewStock,
		CreatedAt:      now,
	}
	audit := model.AuditLog{
		ActorUserID:  actor.UserID,
		Action:       model.AuditActionAdjustStock,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   p.ID,
		BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, p.Stock),
		AfterJSON:    fmt.Sprintf(`{"stock":%d}`, entry.NewStock),
		CreatedAt:    now,
	}

	if u.tx != nil {
		//在庫更新・台帳追記・監査ログを1コミットにまとめる
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if err := r.Inventory().SetStock(ctx, p.ID, entry.NewStock); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "failed to apply stock change")
			}
			if err := r.Ledger().Create(ctx, row); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "failed to record adjustment")
			}
			if err := r.AuditLogs().Create(ctx, audit); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "failed to record audit log")
			}
			return nil
		})
		if err != nil {
			if _, ok := AsHTTPError(err); ok {
				return AdjustOutput{}, err
			}
			return AdjustOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	} else {
		if err := u.adjustWithCompensation(ctx, p, row); err != nil {
			return AdjustOutput{}, err
		}
		//コミット後の監査ログ。失敗しても調整は確定済みなのでログだけ残す。
		if err := u.audits.Create(ctx, audit); err != nil {
			u.logger.Error("audit log write failed after commit",
				zap.String("adjustment_id", row.ID), zap.Error(err))
		}
	}

	u.logger.Info("stock adjusted",
		zap.String("adjustment_id", row.ID),
		zap.Int64("product_id", p.ID),
		zap.Int64("delta", row.SignedQuantity),
		zap.Int64("previous_stock", row.PreviousStock),
		zap.Int64("new_stock", row.NewStock),
		zap.Int64("actor", actor.UserID),
	)

	if u.publisher != nil {
		u.publisher.Publish(row)
	}

	return AdjustOutput{
		Adjustment: row,
		Product: ProductSummary{
			ID:            p.ID,
			Name:          p.Name,
			SKU:           p.SKU,
			PreviousStock: row.PreviousStock,
			NewStock:      row.NewStock,
		},
	}, nil
}

// apply→record、record失敗時は在庫を書き戻す補償パス。
// 書き戻しはベストエフォートで、失敗してもrecordのエラーをそのまま返す。
func (u *InventoryUsecase) adjustWithCompensation(ctx context.Context, p model.Product, row model.StockLedger) error {
	if err := u.inventory.SetStock(ctx, p.ID, row.NewStock); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "failed to apply stock change")
	}

	if err := u.ledgerRep.Create(ctx, row); err != nil {
		if compErr := u.inventory.SetStock(ctx, p.ID, row.PreviousStock); compErr != nil {
			u.logger.Error("compensation failed, stock left inconsistent with ledger",
				zap.Int64("product_id", p.ID),
				zap.Int64("stuck_stock", row.NewStock),
				zap.Int64("wanted_stock", row.PreviousStock),
				zap.Error(compErr))
		}
		return NewHTTPError(http.StatusInternalServerError, "failed to record adjustment")
	}

	return nil
}

// 拒否イベントを監査証跡に残す。失敗してもレスポンスは変えない。
func (u *InventoryUsecase) recordDenial(ctx context.Context, actor Actor, in AdjustInput, le *ledger.LimitExceededError) {
	err := u.audits.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		Action:       model.AuditActionAdjustmentDenied,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   in.ProductID,
		AfterJSON: fmt.Sprintf(`{"quantity":%d,"maxAllowed":%d,"role":%q}`,
			le.Requested, le.Ceiling, string(le.Role)),
		CreatedAt: u.clock.Now(),
	})
	if err != nil {
		u.logger.Error("denial audit write failed",
			zap.Int64("actor", actor.UserID), zap.Error(err))
	}
}

type ListAuditLogsInput struct {
	ActorUserID *int64
	Action      *model.AuditAction
	ProductID   *int64
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ListAuditLogs は監査証跡の一覧取得。拒否イベントのレビュー用。
func (u *InventoryUsecase) ListAuditLogs(ctx context.Context, actor Actor, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if actor.UserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Limit < 0 || in.Limit > 200 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Offset < 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		Action:      in.Action,
		CreatedFrom: in.CreatedFrom,
		CreatedTo:   in.CreatedTo,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if in.ProductID != nil {
		rt := model.AuditResourceProduct
		f.ResourceType = &rt
		f.ResourceID = in.ProductID
	}

	logs, err := u.audits.List(ctx, f)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return logs, nil
}

type ListAdjustmentsInput struct {
	Page      int
	Limit     int
	ProductID *int64
	UserID    *int64
	Kind      *model.AdjustmentKind
	DateFrom  *time.Time
	DateTo    *time.Time
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type ListAdjustmentsOutput struct {
	Adjustments []model.StockLedger `json:"adjustments"`
	Count       int                 `json:"count"`
	Pagination  Pagination          `json:"pagination"`
}

// ListAdjustments は台帳の一覧取得。
// CASHIERはuser_idフィルタの指定に関わらず自分の調整だけに制限される。
func (u *InventoryUsecase) ListAdjustments(ctx context.Context, actor Actor, in ListAdjustmentsInput) (ListAdjustmentsOutput, error) {
	if actor.UserID <= 0 {
		return ListAdjustmentsOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Page < 1 {
		return ListAdjustmentsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ListAdjustmentsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Kind != nil && !in.Kind.Valid() {
		return ListAdjustmentsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid type")
	}

	q := repo.LedgerListQuery{
		Page:      in.Page,
		Limit:     in.Limit,
		ProductID: in.ProductID,
		UserID:    in.UserID,
		Kind:      in.Kind,
		DateFrom:  in.DateFrom,
		DateTo:    in.DateTo,
	}

	//非管理系ロールは自分の行だけ
	if actor.Role == model.RoleCashier {
		own := actor.UserID
		q.UserID = &own
	}

	rows, total, err := u.ledgerRep.List(ctx, q)
	if err != nil {
		return ListAdjustmentsOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	pages := int((total + int64(in.Limit) - 1) / int64(in.Limit))

	return ListAdjustmentsOutput{
		Adjustments: rows,
		Count:       len(rows),
		Pagination: Pagination{
			Page:  in.Page,
			Limit: in.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}
