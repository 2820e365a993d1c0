package services_test

import (
	"context"
	"testing"

	"shotdetect/internal/services"
)

func TestRunAndStageRoundTrip(t *testing.T) {
	ctx := services.WithStage(services.WithRunID(context.Background(), "run-123"), "video")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "video" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
}

func TestEmptyValuesKeepOuterAnnotation(t *testing.T) {
	ctx := services.WithStage(context.Background(), "audio")
	ctx = services.WithStage(ctx, "")
	if stage, _ := services.StageFromContext(ctx); stage != "audio" {
		t.Fatalf("stage = %q, want audio", stage)
	}
	if _, ok := services.RunIDFromContext(services.WithRunID(context.Background(), "")); ok {
		t.Fatal("expected no run id")
	}
}
