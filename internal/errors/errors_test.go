package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceErrorUnwrapsChain(t *testing.T) {
	base := NotFound("contract", "abc")
	wrapped := fmt.Errorf("loading: %w", base)

	got := GetServiceError(wrapped)
	if got == nil {
		t.Fatal("expected service error in chain")
	}
	if got.Code != CodeNotFound || got.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected error: %+v", got)
	}
}

func TestGetServiceErrorNilForPlainError(t *testing.T) {
	if got := GetServiceError(fmt.Errorf("boom")); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestWithDetailsChains(t *testing.T) {
	err := Validation("amount must be positive").WithDetails("field", "amount")
	if err.Details["field"] != "amount" {
		t.Fatalf("missing detail: %+v", err.Details)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", err.HTTPStatus)
	}
}
