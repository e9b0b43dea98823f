package middleware

import (
	"net/http"

	"pos-backend/internal/usecase"

	"github.com/labstack/echo/v4"
)

// RequirePermission は resource:action を持たない呼び出しを403で止める。
// 解決した代表ロールをcontextへ入れる（上限ゲートや自分制限に使う）。
// どのバックエンド（ロールテーブル／メタデータ）が答えたかはここでは見えない。
func RequirePermission(resolver usecase.PermissionResolver, resource string, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawUserID := c.Get(CtxUserIDKey)
			userID, ok := rawUserID.(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			access, err := resolver.Resolve(c.Request().Context(), userID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
			}

			if !access.Permissions.Can(resource, action) {
				return c.JSON(http.StatusForbidden, errorJSON("permission denied"))
			}

			c.Set(CtxUserRoleKey, string(access.Role))

			return next(c)
		}
	}
}
