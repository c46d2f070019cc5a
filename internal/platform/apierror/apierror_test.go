package apierror

import (
	"net/http"
	"testing"
)

func TestToStatusCode(t *testing.T) {
	tests := map[string]int{
		CodeNotFound:    http.StatusNotFound,
		CodeConflict:    http.StatusConflict,
		CodeForbidden:   http.StatusForbidden,
		CodeBadGateway:  http.StatusBadGateway,
		CodeUnavailable: http.StatusServiceUnavailable,
		"mystery":       http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := ToStatusCode(code); got != want {
			t.Fatalf("code %s: expected %d, got %d", code, want, got)
		}
	}
}
