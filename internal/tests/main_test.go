package tests_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/tests"
)

// readonlyScope is the whitelist handed to the router. Tests that exercise
// readonly visibility create subnets inside and outside of it.
const readonlyScope = "10.250.0.0/16"

var ( //nolint:gochecknoglobals
	fixture *tests.Fixture
	router  *gin.Engine

	adminUser    domain.Person
	managerUser  domain.Person
	normalUser   domain.Person
	secondUser   domain.Person
	readonlyUser domain.Person

	adminToken    string
	managerToken  string
	userToken     string
	secondToken   string
	readonlyToken string
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	testCtx, cancel := context.WithTimeout(context.Background(), time.Minute*2)

	fixture = tests.NewFixture()

	router = fixture.CreateRouter(readonlyScope)

	adminUser = fixture.CreateTestUser(testCtx, "admin", "admin")
	managerUser = fixture.CreateTestUser(testCtx, "manager", "manager")
	normalUser = fixture.CreateTestUser(testCtx, "user", "user")
	secondUser = fixture.CreateTestUser(testCtx, "user2", "user")
	readonlyUser = fixture.CreateTestUser(testCtx, "viewer", "readonly")

	adminToken = fixture.Token(adminUser)
	managerToken = fixture.Token(managerUser)
	userToken = fixture.Token(normalUser)
	secondToken = fixture.Token(secondUser)
	readonlyToken = fixture.Token(readonlyUser)

	code := m.Run()

	cancel()
	fixture.Close()
	os.Exit(code)
}
