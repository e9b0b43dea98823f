package ledger

import (
	"fmt"

	"pos-backend/internal/domain/model"

	"go.uber.org/zap"
)

// 上限なしを表す番兵値。
const CeilingUnlimited int64 = -1

// ロールごとの調整量の上限。
func CeilingForRole(role model.RoleName) int64 {
	switch role {
	case model.RoleSuperAdmin, model.RoleAdmin:
		return CeilingUnlimited
	case model.RoleManager:
		return 1000
	case model.RoleCashier:
		return 100
	}
	//VIEWERと未知のロールは常に拒否
	return 0
}

// 上限超過で拒否されたときのエラー。
type LimitExceededError struct {
	Role      model.RoleName
	Requested int64
	Ceiling   int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("adjustment limit exceeded: requested %d, max allowed %d for role %s",
		e.Requested, e.Ceiling, e.Role)
}

// 調整量がロール上限内かを判定するゲート。
// 許可・拒否のどちらでも監査イベントを出す。
type Gate struct {
	logger *zap.Logger
}

func NewGate(logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{logger: logger}
}

// Authorize は要求量がロールの上限を超えていれば LimitExceededError を返す。
func (g *Gate) Authorize(role model.RoleName, requested int64) error {
	ceiling := CeilingForRole(role)

	if ceiling != CeilingUnlimited && requested > ceiling {
		g.logger.Warn("adjustment denied",
			zap.String("role", string(role)),
			zap.Int64("requested", requested),
			zap.Int64("ceiling", ceiling),
		)
		return &LimitExceededError{Role: role, Requested: requested, Ceiling: ceiling}
	}

	g.logger.Info("adjustment authorized",
		zap.String("role", string(role)),
		zap.Int64("requested", requested),
		zap.Int64("ceiling", ceiling),
	)
	return nil
}
