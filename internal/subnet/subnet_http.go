package subnet

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/auth/session"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/httphelper"
)

type subnetHandler struct {
	subnets *Subnets
}

type Authenticator interface {
	Middleware(level permission.Privilege) gin.HandlerFunc
}

func NewHandler(engine *gin.Engine, auth Authenticator, subnets *Subnets) {
	handler := &subnetHandler{subnets: subnets}

	readGrp := engine.Group("/")
	{
		read := readGrp.Use(auth.Middleware(permission.ReadOnly))

		read.GET("/api/subnets", handler.onList())
		read.GET("/api/subnets/:subnet_id", handler.onDetail())
		read.POST("/api/subnets/validate", handler.onValidate())
	}

	mgrGrp := engine.Group("/")
	{
		mgr := mgrGrp.Use(auth.Middleware(permission.Manager))

		mgr.POST("/api/subnets", handler.onCreate())
		mgr.PUT("/api/subnets/:subnet_id", handler.onUpdate())
	}

	adminGrp := engine.Group("/")
	{
		admin := adminGrp.Use(auth.Middleware(permission.Admin))

		admin.DELETE("/api/subnets/:subnet_id", handler.onDelete())
	}
}

func (h *subnetHandler) onList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter domain.SubnetQuery
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		page, errList := h.subnets.List(ctx, profile, filter)
		if errList != nil {
			httphelper.SetDomainError(ctx, errList)

			return
		}

		ctx.JSON(http.StatusOK, page)
	}
}

func (h *subnetHandler) onDetail() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		subnetID, ok := httphelper.GetInt64Param(ctx, "subnet_id")
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		view, errView := h.subnets.View(ctx, profile, subnetID)
		if errView != nil {
			httphelper.SetDomainError(ctx, errView)

			return
		}

		ctx.JSON(http.StatusOK, view)
	}
}

func (h *subnetHandler) onValidate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[domain.RequestSubnetValidate](ctx)
		if !ok {
			return
		}

		validation, errValidate := h.subnets.Validate(ctx, req)
		if errValidate != nil {
			httphelper.SetDomainError(ctx, errValidate)

			return
		}

		ctx.JSON(http.StatusOK, validation)
	}
}

func (h *subnetHandler) onCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[domain.RequestSubnetCreate](ctx)
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		view, errCreate := h.subnets.Create(ctx, profile, req)
		if errCreate != nil {
			httphelper.SetDomainError(ctx, errCreate)

			return
		}

		ctx.JSON(http.StatusCreated, view)
	}
}

func (h *subnetHandler) onUpdate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		subnetID, ok := httphelper.GetInt64Param(ctx, "subnet_id")
		if !ok {
			return
		}

		req, okBind := httphelper.BindJSON[domain.RequestSubnetUpdate](ctx)
		if !okBind {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		updated, errUpdate := h.subnets.Update(ctx, profile, subnetID, req)
		if errUpdate != nil {
			httphelper.SetDomainError(ctx, errUpdate)

			return
		}

		ctx.JSON(http.StatusOK, updated)
	}
}

func (h *subnetHandler) onDelete() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		subnetID, ok := httphelper.GetInt64Param(ctx, "subnet_id")
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		if errDelete := h.subnets.Delete(ctx, profile, subnetID); errDelete != nil {
			httphelper.SetDomainError(ctx, errDelete)

			return
		}

		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}
