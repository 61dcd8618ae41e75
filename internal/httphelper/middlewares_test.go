package httphelper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/httphelper"
	"github.com/stretchr/testify/require"
)

func TestRequestDeadline(t *testing.T) {
	router := httphelper.CreateRouter(httphelper.RouterOpts{
		Mode:           gin.TestMode,
		RequestTimeout: time.Millisecond * 20,
	})

	var sawDeadline bool

	router.GET("/slow", func(ctx *gin.Context) {
		_, sawDeadline = ctx.Deadline()

		select {
		case <-ctx.Done():
			httphelper.SetDomainError(ctx, ctx.Err())
		case <-time.After(time.Second):
			ctx.JSON(http.StatusOK, gin.H{"done": true})
		}
	})

	recorder := httptest.NewRecorder()
	request, errRequest := http.NewRequestWithContext(context.Background(), http.MethodGet, "/slow", nil)
	require.NoError(t, errRequest)

	router.ServeHTTP(recorder, request)

	require.True(t, sawDeadline)
	require.Equal(t, http.StatusGatewayTimeout, recorder.Code)

	var envelope struct {
		Code    string `json:"code"`
		Success bool   `json:"success"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	require.Equal(t, "deadline_exceeded", envelope.Code)
	require.False(t, envelope.Success)
}
