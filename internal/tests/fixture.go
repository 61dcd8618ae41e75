package tests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/address"
	"github.com/netgrid/netgrid/internal/audit"
	"github.com/netgrid/netgrid/internal/auth"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/httphelper"
	"github.com/netgrid/netgrid/internal/person"
	"github.com/netgrid/netgrid/internal/subnet"
	"github.com/netgrid/netgrid/pkg/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPassword is shared by every account the fixture creates.
const TestPassword = "super-secret-test"

var ErrContainer = errors.New("failed to bring up test container")

type postgresContainer struct {
	testcontainers.Container
	dbName   string
	user     string
	password string
	dsn      string
}

func newDB(ctx context.Context) (*postgresContainer, error) {
	const testInfo = "netgrid-test"
	username, password, dbName := testInfo, testInfo, testInfo

	cont, errContainer := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_DB":       dbName,
				"POSTGRES_USER":     username,
				"POSTGRES_PASSWORD": password,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.
				ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		},
		Started: true,
	})
	if errContainer != nil {
		return nil, errors.Join(errContainer, ErrContainer)
	}

	port, errPort := cont.MappedPort(ctx, "5432")
	if errPort != nil {
		return nil, errors.Join(errPort, ErrContainer)
	}

	dsn := fmt.Sprintf("postgresql://%s:%s@localhost:%s/%s", username, password, port.Port(), dbName)

	return &postgresContainer{
		Container: cont,
		dbName:    dbName,
		user:      username,
		password:  password,
		dsn:       dsn,
	}, nil
}

type Fixture struct {
	container *postgresContainer
	Database  database.Database
	Persons   *person.Repository
	Audits    *audit.Repository
	Auth      *auth.Authentication
	DSN       string
	Close     func()
}

func NewFixture() *Fixture {
	testCtx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	testDB, errStore := newDB(testCtx)
	if errStore != nil {
		panic(errStore)
	}

	databaseConn := database.New(testDB.dsn, true, false)
	if err := databaseConn.Connect(testCtx); err != nil {
		panic(err)
	}

	persons := person.NewRepository(databaseConn)

	return &Fixture{
		container: testDB,
		Database:  databaseConn,
		Persons:   persons,
		Audits:    audit.NewRepository(databaseConn),
		Auth:      auth.NewAuthentication(persons, "test-token-secret", time.Hour),
		DSN:       testDB.dsn,
		Close: func() {
			termCtx, termCancel := context.WithTimeout(context.Background(), time.Second*30)
			defer termCancel()

			if errTerm := testDB.Terminate(termCtx); errTerm != nil {
				panic(fmt.Sprintf("Failed to terminate test container: %v", errTerm))
			}
		},
	}
}

// CreateRouter wires the full handler graph against the fixture database.
// The whitelist becomes the readonly scope, so tests can place subnets in
// or out of it.
func (f *Fixture) CreateRouter(readonlyWhitelist ...string) *gin.Engine {
	subnets, errSubnets := subnet.NewSubnets(f.Database, subnet.NewRepository(f.Database), f.Audits, readonlyWhitelist)
	if errSubnets != nil {
		panic(errSubnets)
	}

	addresses := address.NewEngine(f.Database, address.NewRepository(f.Database), f.Audits, subnets)

	router := httphelper.CreateRouter(httphelper.RouterOpts{LogLevel: log.Error, Mode: gin.TestMode})
	auth.NewAuthHandler(router, f.Auth)
	subnet.NewHandler(router, f.Auth, subnets)
	address.NewHandler(router, f.Auth, addresses)
	audit.NewHandler(router, f.Auth, f.Audits)

	return router
}

func (f *Fixture) CreateTestUser(ctx context.Context, username string, role string) domain.Person {
	hash, errHash := auth.HashPassword(TestPassword)
	if errHash != nil {
		panic(errHash)
	}

	user := domain.Person{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if errSave := f.Persons.Save(ctx, &user); errSave != nil {
		panic(errSave)
	}

	return user
}

// Token mints a bearer token for a fixture user without the login roundtrip.
func (f *Fixture) Token(user domain.Person) string {
	token, errToken := f.Auth.NewUserToken(user)
	if errToken != nil {
		panic(errToken)
	}

	return token
}
