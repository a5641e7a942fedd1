package service

import (
	"activity_engine/internal/engine"
	"activity_engine/internal/model"
	"activity_engine/pkg/monitoring"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []*model.AttemptResult
	err  error
}

func (f *fakeStore) Create(res *model.AttemptResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, res)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeStream struct {
	mu   sync.Mutex
	args []*redis.XAddArgs
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", nil)
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(eventType string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, eventType)
	return nil
}

func (f *fakePublisher) Close() {}

type failingRecorder struct{}

func (failingRecorder) Name() string { return "broken" }

func (failingRecorder) Record(context.Context, CompletedAttempt) error {
	return errors.New("sink down")
}

func attempt(sessionID string, abandoned bool) CompletedAttempt {
	return CompletedAttempt{
		Result: engine.Result{
			SessionID:   sessionID,
			LearnerID:   "u1",
			ActivityID:  "a1",
			Kind:        engine.KindQuiz,
			Score:       80,
			Abandoned:   abandoned,
			CompletedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		},
		LessonID: "lesson-1",
		ClassID:  "class-1",
	}
}

func TestCompletedAttemptEventType(t *testing.T) {
	if got := attempt("s1", false).EventType(); got != EventAttemptCompleted {
		t.Errorf("completed event = %q", got)
	}
	if got := attempt("s1", true).EventType(); got != EventAttemptAbandoned {
		t.Errorf("abandoned event = %q", got)
	}
}

func TestMultiRecorderFansOut(t *testing.T) {
	store := &fakeStore{}
	stream := &fakeStream{}
	pub := &fakePublisher{}
	before := testutil.ToFloat64(monitoring.RecorderFailures.WithLabelValues("broken"))

	m := NewMultiRecorder(time.Second,
		failingRecorder{},
		&StoreRecorder{Repo: store},
		&StreamRecorder{Client: stream, Stream: "activity:results", MaxLen: 100},
	)
	m.Add(&EventRecorder{Publisher: pub})

	m.RecordAsync(attempt("s1", false))
	m.RecordAsync(attempt("s2", true))
	m.Wait()

	if store.count() != 2 {
		t.Fatalf("stored %d rows, want 2", store.count())
	}
	if len(stream.args) != 2 {
		t.Fatalf("stream entries = %d", len(stream.args))
	}
	for _, a := range stream.args {
		if a.Stream != "activity:results" || a.MaxLen != 100 || !a.Approx {
			t.Errorf("xadd args = %+v", a)
		}
		values := a.Values.(map[string]interface{})
		if values["learnerId"] != "u1" {
			t.Errorf("values = %v", values)
		}
	}
	if len(pub.topics) != 2 {
		t.Fatalf("published %v", pub.topics)
	}
	failures := testutil.ToFloat64(monitoring.RecorderFailures.WithLabelValues("broken")) - before
	if failures != 2 {
		t.Errorf("failure counter grew by %v, want 2", failures)
	}
}

func TestStoreRecorderMapsResult(t *testing.T) {
	store := &fakeStore{}
	r := &StoreRecorder{Repo: store}
	if err := r.Record(context.Background(), attempt("s9", false)); err != nil {
		t.Fatal(err)
	}
	row := store.rows[0]
	if row.SessionID != "s9" || row.LessonID != "lesson-1" || row.ClassID != "class-1" || row.Score != 80 {
		t.Fatalf("row = %+v", row)
	}

	store.err = errors.New("db down")
	if err := r.Record(context.Background(), attempt("s10", false)); err == nil {
		t.Fatal("expected store error")
	}
}

func TestMultiRecorderRecordsSynchronouslyAfterWait(t *testing.T) {
	store := &fakeStore{}
	m := NewMultiRecorder(time.Second, &StoreRecorder{Repo: store})
	m.RecordAsync(attempt("s1", false))
	m.Wait()

	m.RecordAsync(attempt("s2", false))
	if store.count() != 2 {
		t.Fatalf("stored %d rows after late record, want 2", store.count())
	}
	m.Wait()
}
