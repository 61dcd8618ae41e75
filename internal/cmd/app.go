package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netgrid/netgrid/internal/address"
	"github.com/netgrid/netgrid/internal/audit"
	"github.com/netgrid/netgrid/internal/auth"
	"github.com/netgrid/netgrid/internal/config"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/httphelper"
	"github.com/netgrid/netgrid/internal/person"
	"github.com/netgrid/netgrid/internal/subnet"
	"github.com/netgrid/netgrid/pkg/log"
)

var (
	BuildVersion = "master" //nolint:gochecknoglobals
	BuildCommit  = ""       //nolint:gochecknoglobals
	BuildDate    = ""       //nolint:gochecknoglobals
)

type BuildInfo struct {
	BuildVersion string
	Commit       string
	Date         string
}

func Version() BuildInfo {
	return BuildInfo{
		BuildVersion: BuildVersion,
		Commit:       BuildCommit,
		Date:         BuildDate,
	}
}

// App owns the wired service graph. Init must be called before Serve.
type App struct {
	config    domain.Config
	database  database.Database
	persons   *person.Repository
	audits    *audit.Repository
	subnets   *subnet.Subnets
	addresses *address.Engine
	auth      *auth.Authentication

	logCloser func()
}

func NewApp() (*App, error) {
	conf, errConfig := config.Read(cfgFile)
	if errConfig != nil {
		slog.Error("Failed to read config", log.ErrAttr(errConfig))

		return nil, errConfig
	}

	logCloser := log.MustCreateLogger(conf.LogFile, log.Level(conf.LogLevel), BuildVersion)

	return &App{config: conf, logCloser: logCloser}, nil
}

func (a *App) Init(ctx context.Context) error {
	dbConn := database.New(a.config.DatabaseDSN, a.config.DatabaseAutoMigrate, a.config.DatabaseLogQueries)
	if errConnect := dbConn.Connect(ctx); errConnect != nil {
		slog.Error("Cannot initialize database", log.ErrAttr(errConnect))

		return errConnect
	}

	a.database = dbConn
	a.persons = person.NewRepository(dbConn)
	a.audits = audit.NewRepository(dbConn)

	subnets, errSubnets := subnet.NewSubnets(dbConn, subnet.NewRepository(dbConn), a.audits, a.config.ReadonlyWhitelist)
	if errSubnets != nil {
		slog.Error("Invalid readonly whitelist", log.ErrAttr(errSubnets))

		return errSubnets
	}

	a.subnets = subnets
	a.addresses = address.NewEngine(dbConn, address.NewRepository(dbConn), a.audits, subnets)
	a.auth = auth.NewAuthentication(a.persons, a.config.TokenSecret, a.config.TokenLifetime)

	return nil
}

func (a *App) Serve(rootCtx context.Context) error {
	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := httphelper.CreateRouter(httphelper.RouterOpts{
		Mode:              a.config.Mode.String(),
		LogLevel:          log.Level(a.config.LogLevel),
		HTTPLogEnabled:    a.config.Mode != domain.TestMode,
		PProfEnabled:      a.config.PProfEnabled,
		PrometheusEnabled: a.config.PrometheusEnabled,
		CORSOrigins:       a.config.HTTPCorsOrigins,
		RequestTimeout:    a.config.HTTPRequestTimeout,
	})

	auth.NewAuthHandler(router, a.auth)
	subnet.NewHandler(router, a.auth, a.subnets)
	address.NewHandler(router, a.auth, a.addresses)
	audit.NewHandler(router, a.auth, a.audits)

	httpServer := httphelper.NewServer(a.config.Addr(), router)

	go func() {
		<-ctx.Done()

		slog.Info("Shutting down HTTP service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		if errShutdown := httpServer.Shutdown(shutdownCtx); errShutdown != nil { //nolint:contextcheck
			slog.Error("Error shutting down http service", log.ErrAttr(errShutdown))
		}
	}()

	slog.Info("Starting HTTP server", slog.String("address", a.config.Addr()))

	errServe := httpServer.ListenAndServe()
	if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		slog.Error("HTTP server returned error", log.ErrAttr(errServe))

		return errServe
	}

	slog.Info("Exiting...")

	return nil
}

func (a *App) Close(_ context.Context) error {
	if a.database != nil {
		if errClose := a.database.Close(); errClose != nil {
			slog.Error("Failed to close database cleanly", log.ErrAttr(errClose))
		}
	}

	if a.logCloser != nil {
		a.logCloser()
	}

	return nil
}
