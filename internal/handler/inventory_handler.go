package handler

import (
	"net/http"
	"strconv"
	"time"

	"pos-backend/internal/config"
	"pos-backend/internal/domain/model"
	"pos-backend/internal/middleware"
	"pos-backend/internal/offline"
	"pos-backend/internal/realtime"
	"pos-backend/internal/repository"
	"pos-backend/internal/usecase"

	"github.com/labstack/echo/v4"
)

// POST /inventory/adjust のリクエスト
type AdjustRequest struct {
	ProductID   int64   `json:"product_id"`
	Quantity    int64   `json:"quantity"`
	Type        string  `json:"type"`
	Reason      string  `json:"reason"`
	Notes       string  `json:"notes,omitempty"`
	ReferenceID *string `json:"reference_id,omitempty"`
}

type AdjustResponse struct {
	Success    bool                   `json:"success"`
	Adjustment model.StockLedger      `json:"adjustment"`
	Product    usecase.ProductSummary `json:"product"`
}

// キューに積まれたときの確認レスポンス
type QueuedResponse struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

type ListAdjustmentsResponse struct {
	Success     bool                `json:"success"`
	Adjustments []model.StockLedger `json:"adjustments"`
	Count       int                 `json:"count"`
	Pagination  usecase.Pagination  `json:"pagination"`
}

// /inventory のHTTP。
// POSTは接続状態を見るキュー経由で流す（断のときは積んで202）。
type InventoryHandler struct {
	uc        *usecase.InventoryUsecase
	queue     *offline.Queue
	projector *realtime.Projector
}

// DI
func NewInventoryHandler(uc *usecase.InventoryUsecase, queue *offline.Queue, projector *realtime.Projector) *InventoryHandler {
	return &InventoryHandler{uc: uc, queue: queue, projector: projector}
}

// /inventory を登録
func (h *InventoryHandler) RegisterRoutes(
	e *echo.Echo,
	cfg config.Config,
	userRepo repository.UserRepository,
	resolver usecase.PermissionResolver,
) {
	g := e.Group("/inventory")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("/adjust", h.adjust, middleware.RequirePermission(resolver, "inventory", "update"))
	g.GET("/adjust", h.listAdjustments, middleware.RequirePermission(resolver, "inventory", "read"))
	g.GET("/movements", h.movements, middleware.RequirePermission(resolver, "inventory", "read"))
	//監査証跡は管理ロールだけ（users:read はADMIN以上）
	g.GET("/audit", h.listAuditLogs, middleware.RequirePermission(resolver, "users", "read"))
}

func (h *InventoryHandler) adjust(c echo.Context) error {
	var req AdjustRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	in := usecase.AdjustInput{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Kind:        model.AdjustmentKind(req.Type),
		Reason:      req.Reason,
		Notes:       req.Notes,
		ReferenceID: req.ReferenceID,
	}

	res, err := h.queue.Submit(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}

	if res.Queued {
		return c.JSON(http.StatusAccepted, QueuedResponse{
			Success: true,
			Queued:  true,
			Message: "queued, will sync",
		})
	}

	return c.JSON(http.StatusCreated, AdjustResponse{
		Success:    true,
		Adjustment: res.Output.Adjustment,
		Product:    res.Output.Product,
	})
}

func (h *InventoryHandler) listAdjustments(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	in := usecase.ListAdjustmentsInput{Page: 1, Limit: 20}

	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		in.Page = p
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		in.Limit = l
	}
	if v := c.QueryParam("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
		}
		in.ProductID = &id
	}
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		}
		in.UserID = &id
	}
	if v := c.QueryParam("type"); v != "" {
		kind := model.AdjustmentKind(v)
		in.Kind = &kind
	}
	if v := c.QueryParam("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date_from"})
		}
		in.DateFrom = &t
	}
	if v := c.QueryParam("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date_to"})
		}
		in.DateTo = &t
	}

	out, err := h.uc.ListAdjustments(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, ListAdjustmentsResponse{
		Success:     true,
		Adjustments: out.Adjustments,
		Count:       out.Count,
		Pagination:  out.Pagination,
	})
}

func (h *InventoryHandler) listAuditLogs(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var in usecase.ListAuditLogsInput

	if v := c.QueryParam("actor_user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid actor_user_id"})
		}
		in.ActorUserID = &id
	}
	if v := c.QueryParam("action"); v != "" {
		action := model.AuditAction(v)
		in.Action = &action
	}
	if v := c.QueryParam("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
		}
		in.ProductID = &id
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		in.Limit = l
	}
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		in.Offset = o
	}

	logs, err := h.uc.ListAuditLogs(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"logs":    logs,
	})
}

// 直近の在庫変動フィード（新しい順）
func (h *InventoryHandler) movements(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"movements": h.projector.Feed(),
	})
}

// middleware.AuthJWT の user_id と RequirePermission の user_role から操作者を組み立てる
func actorFromContext(c echo.Context) (usecase.Actor, bool) {
	rawID := c.Get(middleware.CtxUserIDKey)
	userID, ok := rawID.(int64)
	if !ok || userID <= 0 {
		return usecase.Actor{}, false
	}

	rawRole := c.Get(middleware.CtxUserRoleKey)
	role, ok := rawRole.(string)
	if !ok || role == "" {
		return usecase.Actor{}, false
	}

	return usecase.Actor{UserID: userID, Role: model.RoleName(role)}, true
}
