package middleware

import (
	"net/http"

	"pos-backend/internal/repository"

	"github.com/labstack/echo/v4"
)

// TokenVersionGuard は発行後に失効したトークンを落とす。
// パスワード変更や強制ログアウトでDB側のtoken_versionが進むので、
// 古いバージョンを持つトークンと無効化済みアカウントはここで401になる。
// AuthJWTの後段に置くこと。
func TokenVersionGuard(users repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, okID := c.Get(CtxUserIDKey).(int64)
			tv, okTV := c.Get(CtxTokenVersionKey).(int)
			if !okID || userID <= 0 || !okTV || tv < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			user, err := users.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if !user.IsActive || user.TokenVersion != tv {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			return next(c)
		}
	}
}
