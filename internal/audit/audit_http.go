package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/httphelper"
)

type auditHandler struct {
	repo *Repository
}

type Authenticator interface {
	Middleware(level permission.Privilege) gin.HandlerFunc
}

func NewHandler(engine *gin.Engine, auth Authenticator, repo *Repository) {
	handler := &auditHandler{repo: repo}

	mgrGrp := engine.Group("/")
	{
		mgr := mgrGrp.Use(auth.Middleware(permission.Manager))

		mgr.GET("/api/audit", handler.onQuery())
	}
}

func (h *auditHandler) onQuery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter domain.AuditQuery
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		entries, total, errQuery := h.repo.Query(ctx, filter)
		if errQuery != nil {
			httphelper.SetDomainError(ctx, errQuery)

			return
		}

		ctx.JSON(http.StatusOK, domain.NewPage(entries, total, filter.Skip, filter.Limit))
	}
}
