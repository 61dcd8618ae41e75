package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Endpoint performs a single request against the router and asserts the
// response status. A non empty token is sent as a bearer credential.
func Endpoint(t *testing.T, router http.Handler, method string, path string,
	body any, expectedStatus int, token string,
) *httptest.ResponseRecorder {
	t.Helper()

	reqCtx, cancel := context.WithTimeout(t.Context(), time.Second*10)
	defer cancel()

	recorder := httptest.NewRecorder()

	var bodyReader io.Reader

	if body != nil {
		bodyJSON, errJSON := json.Marshal(body)
		if errJSON != nil {
			t.Fatalf("Failed to encode request: %v", errJSON)
		}

		bodyReader = bytes.NewReader(bodyJSON)
	}

	request, errRequest := http.NewRequestWithContext(reqCtx, method, path, bodyReader)
	if errRequest != nil {
		t.Fatalf("Failed to make request: %v", errRequest)
	}

	if token != "" {
		request.Header.Add("Authorization", "Bearer "+token)
	}

	router.ServeHTTP(recorder, request)

	require.Equal(t, expectedStatus, recorder.Code,
		"Received invalid response code. method: %s path: %s body: %s", method, path, recorder.Body.String())

	return recorder
}

// EndpointReceiver is Endpoint plus decoding the response body into receiver.
func EndpointReceiver(t *testing.T, router http.Handler, method string,
	path string, body any, expectedStatus int, token string, receiver any,
) {
	t.Helper()

	resp := Endpoint(t, router, method, path, body, expectedStatus, token)

	if receiver != nil {
		if err := json.NewDecoder(resp.Body).Decode(receiver); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

// ErrorEnvelope mirrors the uniform error payload for assertions.
type ErrorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Success bool   `json:"success"`
}
