package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/auth/session"
	"github.com/netgrid/netgrid/internal/httphelper"
)

type authHandler struct {
	*Authentication
}

func NewAuthHandler(engine *gin.Engine, auth *Authentication) {
	handler := &authHandler{Authentication: auth}

	engine.POST("/auth/login", handler.onLogin())

	authGrp := engine.Group("/")
	{
		env := authGrp.Use(auth.Middleware(permission.ReadOnly))

		env.GET("/api/profile", handler.onProfile())
	}
}

type RequestLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResponseLogin struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *authHandler) onLogin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[RequestLogin](ctx)
		if !ok {
			return
		}

		token, person, errLogin := h.Login(ctx, req.Username, req.Password)
		if errLogin != nil {
			httphelper.SetDomainError(ctx, errLogin)

			return
		}

		ctx.JSON(http.StatusOK, ResponseLogin{
			Token:    token,
			Username: person.Username,
			Role:     person.Role,
		})
	}
}

func (h *authHandler) onProfile() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		profile, _ := session.CurrentProfile(ctx)

		ctx.JSON(http.StatusOK, profile)
	}
}
