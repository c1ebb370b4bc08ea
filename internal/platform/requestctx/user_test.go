package requestctx

import (
	"context"
	"testing"
)

func TestUserIDFromContextRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-42")
	got := UserIDFromContext(ctx)
	if got != "user-42" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-42")
	}
}

func TestUserIDFromContextEmpty(t *testing.T) {
	got := UserIDFromContext(context.Background())
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestUserIDFromContextNil(t *testing.T) {
	got := UserIDFromContext(nil)
	if got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestWithUserIDNilContext(t *testing.T) {
	ctx := WithUserID(nil, "user-99")
	if ctx == nil {
		t.Fatalf("expected non-nil context")
	}
	if got := UserIDFromContext(ctx); got != "user-99" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-99")
	}
}

func TestConnectionIDFromContext(t *testing.T) {
	ctx := WithConnectionID(WithUserID(context.Background(), "user-1"), "conn-1")
	if got := ConnectionIDFromContext(ctx); got != "conn-1" {
		t.Fatalf("ConnectionIDFromContext = %q, want %q", got, "conn-1")
	}
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Fatalf("UserIDFromContext = %q, want %q", got, "user-1")
	}
	if got := ConnectionIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty connection id, got %q", got)
	}
	if got := ConnectionIDFromContext(nil); got != "" {
		t.Fatalf("expected empty connection id for nil context, got %q", got)
	}
}
