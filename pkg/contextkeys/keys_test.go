package contextkeys

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want req-1", got)
	}
}

func TestUser(t *testing.T) {
	ctx := WithUser(context.Background(), "octocat")
	if got := GetUser(ctx); got != "octocat" {
		t.Errorf("GetUser() = %q, want octocat", got)
	}
}
