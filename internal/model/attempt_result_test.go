package model

import (
	"activity_engine/internal/engine"
	"activity_engine/pkg/logger"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })
	return logs
}

func TestAttemptResultKeepsItems(t *testing.T) {
	correct, total := 1, 2
	res := engine.Result{
		SessionID:    "s1",
		LearnerID:    "u1",
		Kind:         engine.KindQuiz,
		Score:        50,
		CorrectCount: &correct,
		TotalCount:   &total,
		Items: []engine.ItemOutcome{
			{ItemID: "q1", Answered: true, Correct: true},
			{ItemID: "q2", Answered: false},
		},
		CompletedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	got := NewAttemptResult(res, "lesson-1", "class-1").ToResult()
	if len(got.Items) != 2 || got.Items[0].ItemID != "q1" || !got.Items[0].Correct || got.Items[1].Answered {
		t.Fatalf("items = %+v", got.Items)
	}
	if *got.CorrectCount != 1 || *got.TotalCount != 2 {
		t.Fatalf("counts = %d/%d", *got.CorrectCount, *got.TotalCount)
	}
}

func TestAttemptResultUnreadableItemsAreLogged(t *testing.T) {
	logs := observeLogs(t)
	row := &AttemptResult{SessionID: "s1", LearnerID: "u1", Score: 80, Items: "{not json"}

	res := row.ToResult()
	if res.Items != nil || res.Score != 80 || res.SessionID != "s1" {
		t.Fatalf("result = %+v", res)
	}
	entries := logs.FilterField(zap.String("sessionId", "s1")).All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("log entries = %+v", entries)
	}
}
