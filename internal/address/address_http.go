package address

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/auth/session"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/httphelper"
)

type addressHandler struct {
	engine *Engine
}

type Authenticator interface {
	Middleware(level permission.Privilege) gin.HandlerFunc
}

func NewHandler(engine *gin.Engine, auth Authenticator, addresses *Engine) {
	handler := &addressHandler{engine: addresses}

	readGrp := engine.Group("/")
	{
		read := readGrp.Use(auth.Middleware(permission.ReadOnly))

		read.GET("/api/addresses", handler.onSearch())
		read.GET("/api/addresses/range", handler.onRange())
		read.GET("/api/addresses/:address_id", handler.onDetail())
	}

	userGrp := engine.Group("/")
	{
		user := userGrp.Use(auth.Middleware(permission.User))

		user.POST("/api/addresses/allocate", handler.onAllocate())
		user.POST("/api/addresses/bulk_allocate", handler.onBulkAllocate())
		user.POST("/api/addresses/:address_id/release", handler.onRelease())
	}

	mgrGrp := engine.Group("/")
	{
		mgr := mgrGrp.Use(auth.Middleware(permission.Manager))

		mgr.POST("/api/addresses/:address_id/reserve", handler.onReserve())
		mgr.POST("/api/addresses/:address_id/conflict", handler.onMarkConflict())
		mgr.POST("/api/addresses/:address_id/conflict/resolve", handler.onResolveConflict())
		mgr.POST("/api/addresses/bulk", handler.onBulkOp())
	}

	adminGrp := engine.Group("/")
	{
		admin := adminGrp.Use(auth.Middleware(permission.Admin))

		admin.POST("/api/subnets/:subnet_id/detect_conflicts", handler.onDetectConflicts())
	}
}

func (h *addressHandler) onSearch() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var filter domain.AddressQuery
		if !httphelper.BindQuery(ctx, &filter) {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		page, errSearch := h.engine.Search(ctx, profile, filter)
		if errSearch != nil {
			httphelper.SetDomainError(ctx, errSearch)

			return
		}

		ctx.JSON(http.StatusOK, page)
	}
}

func (h *addressHandler) onDetail() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		addressID, ok := httphelper.GetInt64Param(ctx, "address_id")
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addr, errAddr := h.engine.Get(ctx, profile, addressID)
		if errAddr != nil {
			httphelper.SetDomainError(ctx, errAddr)

			return
		}

		ctx.JSON(http.StatusOK, addr)
	}
}

func (h *addressHandler) onRange() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start, okStart := ctx.GetQuery("start")
		end, okEnd := ctx.GetQuery("end")

		if !okStart || !okEnd {
			httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusBadRequest, "bad_request",
				httphelper.ErrParamKeyMissing, "start and end query params are required"))

			return
		}

		profile, _ := session.CurrentProfile(ctx)

		statuses, errRange := h.engine.RangeStatuses(ctx, profile, start, end)
		if errRange != nil {
			httphelper.SetDomainError(ctx, errRange)

			return
		}

		ctx.JSON(http.StatusOK, statuses)
	}
}

func (h *addressHandler) onAllocate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[domain.RequestAllocate](ctx)
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addr, errAllocate := h.engine.Allocate(ctx, profile, req)
		if errAllocate != nil {
			httphelper.SetDomainError(ctx, errAllocate)

			return
		}

		ctx.JSON(http.StatusOK, addr)
	}
}

func (h *addressHandler) onBulkAllocate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[domain.RequestBulkAllocate](ctx)
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addrs, errAllocate := h.engine.BulkAllocate(ctx, profile, req)
		if errAllocate != nil {
			httphelper.SetDomainError(ctx, errAllocate)

			return
		}

		ctx.JSON(http.StatusOK, addrs)
	}
}

func (h *addressHandler) onReserve() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		addressID, ok := httphelper.GetInt64Param(ctx, "address_id")
		if !ok {
			return
		}

		req, okBind := httphelper.BindJSON[domain.RequestReserve](ctx)
		if !okBind {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addr, errReserve := h.engine.Reserve(ctx, profile, addressID, req)
		if errReserve != nil {
			httphelper.SetDomainError(ctx, errReserve)

			return
		}

		ctx.JSON(http.StatusOK, addr)
	}
}

func (h *addressHandler) onRelease() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		addressID, ok := httphelper.GetInt64Param(ctx, "address_id")
		if !ok {
			return
		}

		req, okBind := httphelper.BindJSON[domain.RequestRelease](ctx)
		if !okBind {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addr, errRelease := h.engine.Release(ctx, profile, addressID, req)
		if errRelease != nil {
			httphelper.SetDomainError(ctx, errRelease)

			return
		}

		ctx.JSON(http.StatusOK, addr)
	}
}

func (h *addressHandler) onMarkConflict() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		addressID, ok := httphelper.GetInt64Param(ctx, "address_id")
		if !ok {
			return
		}

		req, okBind := httphelper.BindJSON[domain.RequestConflict](ctx)
		if !okBind {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addr, errMark := h.engine.MarkConflict(ctx, profile, addressID, req)
		if errMark != nil {
			httphelper.SetDomainError(ctx, errMark)

			return
		}

		ctx.JSON(http.StatusOK, addr)
	}
}

func (h *addressHandler) onResolveConflict() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		addressID, ok := httphelper.GetInt64Param(ctx, "address_id")
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		addr, errResolve := h.engine.ResolveConflict(ctx, profile, addressID)
		if errResolve != nil {
			httphelper.SetDomainError(ctx, errResolve)

			return
		}

		ctx.JSON(http.StatusOK, addr)
	}
}

func (h *addressHandler) onBulkOp() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req, ok := httphelper.BindJSON[domain.RequestBulkOp](ctx)
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		result, errBulk := h.engine.BulkOp(ctx, profile, req)
		if errBulk != nil {
			httphelper.SetDomainError(ctx, errBulk)

			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

func (h *addressHandler) onDetectConflicts() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		subnetID, ok := httphelper.GetInt64Param(ctx, "subnet_id")
		if !ok {
			return
		}

		profile, _ := session.CurrentProfile(ctx)

		marked, errDetect := h.engine.DetectConflicts(ctx, profile, subnetID)
		if errDetect != nil {
			httphelper.SetDomainError(ctx, errDetect)

			return
		}

		ctx.JSON(http.StatusOK, marked)
	}
}
