package tests_test

import (
	"encoding/json"
	"net/http/httptest"
)

func decodeBody(resp *httptest.ResponseRecorder, receiver any) error {
	return json.NewDecoder(resp.Body).Decode(receiver)
}
