package services_test

import (
	"context"
	"testing"

	"hopper/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItem(ctx, "feature-login.md")
	ctx = services.WithPhase(ctx, "submit_draft")
	ctx = services.WithRequestID(ctx, "req-123")

	if name, ok := services.ItemFromContext(ctx); !ok || name != "feature-login.md" {
		t.Fatalf("unexpected item: %v %v", name, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "submit_draft" {
		t.Fatalf("unexpected phase: %v %v", phase, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestPhaseBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhase(ctx, "")
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected no phase value")
	}
}
