package services_test

import (
	"context"
	"testing"

	"seqwatch/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPollID(ctx, "poll-1")
	ctx = services.WithRunID(ctx, "20240101_LH00001_0001_AXXXX")
	ctx = services.WithWatchRoot(ctx, "/data/novaseq")

	if id, ok := services.PollIDFromContext(ctx); !ok || id != "poll-1" {
		t.Fatalf("unexpected poll id: %v %v", id, ok)
	}
	if id, ok := services.RunIDFromContext(ctx); !ok || id != "20240101_LH00001_0001_AXXXX" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if root, ok := services.WatchRootFromContext(ctx); !ok || root != "/data/novaseq" {
		t.Fatalf("unexpected root: %v %v", root, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	if got := services.WithPollID(ctx, ""); got != ctx {
		t.Fatal("expected blank poll id to return original context")
	}
	if _, ok := services.RunIDFromContext(services.WithRunID(ctx, "")); ok {
		t.Fatal("expected no run id for blank value")
	}
}
