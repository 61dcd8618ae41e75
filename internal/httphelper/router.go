package httphelper

import (
	"log/slog"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/pkg/log"
	sloggin "github.com/samber/slog-gin"
)

type RouterOpts struct {
	Mode              string
	LogLevel          log.Level
	HTTPLogEnabled    bool
	PProfEnabled      bool
	PrometheusEnabled bool
	CORSOrigins       []string
	RequestTimeout    time.Duration
}

// CreateRouter constructs a new router using gin.Engine with the provided RouterOpts.
func CreateRouter(opts RouterOpts) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// Expose the wrapped request context's deadline and cancellation through
	// the gin context handed to usecases and the database layer.
	engine.ContextWithFallback = true
	engine.Use(recoveryHandler())
	engine.Use(errorHandler())

	if opts.RequestTimeout > 0 {
		engine.Use(useDeadline(opts.RequestTimeout))
	}

	if opts.HTTPLogEnabled {
		useSloggin(engine, opts.LogLevel)
	}

	if opts.PProfEnabled {
		pprof.Register(engine)
	}

	useCors(engine, opts.CORSOrigins)

	if opts.PrometheusEnabled {
		usePrometheus(engine)
	}

	return engine
}

func useCors(engine *gin.Engine, origins []string) {
	if len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		corsConfig.AllowWildcard = true
		corsConfig.AllowCredentials = true

		engine.Use(cors.New(corsConfig))
	} else {
		slog.Warn("No cors origins defined, disabling")
	}
}

func usePrometheus(engine *gin.Engine) {
	prom := ginprom.New(func(prom *ginprom.Prometheus) {
		prom.Namespace = "netgrid"
		prom.Subsystem = "http"
	})
	engine.Use(prom.Instrument())
}

func useSloggin(engine *gin.Engine, level log.Level) {
	logConfig := sloggin.Config{
		DefaultLevel: log.ToSlogLevel(level),
	}

	engine.Use(sloggin.NewWithConfig(slog.Default(), logConfig))
}
