package httphelper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/auth/session"
)

func recoveryHandler() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		slog.Error("Recovery error:", slog.Any("err", err))

		c.JSON(http.StatusInternalServerError, APIError{
			Message: "internal server error",
			Code:    "internal_error",
		})
	})
}

func errorHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		if err := ctx.Errors.Last(); err != nil {
			ctx.Abort()

			var apiError APIError
			if !errors.As(err, &apiError) {
				apiError = ErrorFromDomain(err.Err)
			}

			ctx.JSON(apiError.Status, apiError)

			args := []any{
				slog.String("method", ctx.Request.Method),
				slog.String("path", ctx.Request.URL.Path),
				slog.Int("status", apiError.Status),
				slog.String("code", apiError.Code),
				slog.String("error", err.Error()),
			}

			if user, ok := session.CurrentProfile(ctx); ok {
				args = append(args, slog.String("username", user.Username))
			}

			slog.Error("Error in http handler", args...)
		}
	}
}

// useDeadline bounds every request by the configured timeout. Handlers that
// overrun observe ctx.Done and surface context.DeadlineExceeded, which the
// error handler maps to a 504.
func useDeadline(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()

		ctx.Request = ctx.Request.WithContext(reqCtx)
		ctx.Next()
	}
}
