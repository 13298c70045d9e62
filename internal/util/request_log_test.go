package util

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slogDefaultSwap(NewLogger(&buf, "info", "json"))
	t.Cleanup(prev)

	h := WithRequestID(WithRequestLog(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	req.RemoteAddr = "198.51.100.1:5000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "http_request" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected status %v", entry["status"])
	}
	if entry["request_id"] != "rid-1" {
		t.Fatalf("unexpected request_id %v", entry["request_id"])
	}
	if entry["client_ip"] != "198.51.100.1" {
		t.Fatalf("unexpected client_ip %v", entry["client_ip"])
	}
}
