package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func TestAttemptCacheIndexesInProgress(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewAttemptCache(memory.NewAttemptStore(), newClient(mr), time.Minute)

	attempt := testAttempt("a1", "u1", "quiz-1")
	if err := cache.Create(ctx, attempt); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got, _ := mr.Get("attempt:inprogress:u1:quiz-1"); got != "a1" {
		t.Fatalf("expected resume marker a1, got %q", got)
	}

	found, ok, err := cache.FindInProgress(ctx, "u1", "quiz-1")
	if err != nil || !ok || found.ID != "a1" {
		t.Fatalf("expected cache-backed resume, got ok=%v id=%s err=%v", ok, found.ID, err)
	}
}

func TestAttemptCacheDropsStaleMarker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewAttemptCache(memory.NewAttemptStore(), newClient(mr), time.Minute)

	// Marker points at an attempt the store has never seen.
	if err := mr.Set("attempt:inprogress:u1:quiz-1", "ghost"); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	if _, ok, err := cache.FindInProgress(ctx, "u1", "quiz-1"); err != nil || ok {
		t.Fatalf("expected miss for stale marker, ok=%v err=%v", ok, err)
	}
	if mr.Exists("attempt:inprogress:u1:quiz-1") {
		t.Fatalf("expected stale marker deleted")
	}
}

func TestAttemptCacheRepopulatesFromStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := memory.NewAttemptStore()
	if err := store.Create(ctx, testAttempt("a1", "u1", "quiz-1")); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	// Created behind the cache's back, so Redis has no marker yet.
	cache := NewAttemptCache(store, newClient(mr), time.Minute)
	found, ok, err := cache.FindInProgress(ctx, "u1", "quiz-1")
	if err != nil || !ok || found.ID != "a1" {
		t.Fatalf("expected store fallback, got ok=%v id=%s err=%v", ok, found.ID, err)
	}
	if got, _ := mr.Get("attempt:inprogress:u1:quiz-1"); got != "a1" {
		t.Fatalf("expected marker re-set after store hit, got %q", got)
	}
}

func TestAttemptCacheClearsMarkerOnFinalize(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewAttemptCache(memory.NewAttemptStore(), newClient(mr), time.Minute)

	attempt := testAttempt("a1", "u1", "quiz-1")
	if err := cache.Create(ctx, attempt); err != nil {
		t.Fatalf("create: %v", err)
	}

	submitted := time.Now()
	done := attempt
	done.SubmittedAt = &submitted
	done.Completed = true
	result := domain.Result{ID: "r1", AttemptID: "a1", SubmittedAt: submitted}
	if err := cache.Finalize(ctx, done, result, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if mr.Exists("attempt:inprogress:u1:quiz-1") {
		t.Fatalf("expected marker cleared after finalize")
	}
	if _, ok, err := cache.FindInProgress(ctx, "u1", "quiz-1"); err != nil || ok {
		t.Fatalf("expected no in-progress attempt after finalize, ok=%v err=%v", ok, err)
	}
}

func testAttempt(id, userID, quizID string) domain.Attempt {
	return domain.Attempt{
		ID:             id,
		UserID:         userID,
		QuizID:         quizID,
		StartedAt:      time.Now(),
		TotalQuestions: 2,
		Answers:        map[string]int{},
	}
}
