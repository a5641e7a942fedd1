package service

import (
	"activity_engine/internal/engine"
	"activity_engine/internal/model"
	"activity_engine/pkg/events"
	"activity_engine/pkg/logger"
	"activity_engine/pkg/monitoring"
	"activity_engine/pkg/tracing"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	EventAttemptCompleted = "attempt.completed"
	EventAttemptAbandoned = "attempt.abandoned"
)

// CompletedAttempt 是会话结束后交给各个记录端的数据
type CompletedAttempt struct {
	Result   engine.Result `json:"result"`
	LessonID string        `json:"lessonId"`
	ClassID  string        `json:"classId"`
}

func (a CompletedAttempt) EventType() string {
	if a.Result.Abandoned {
		return EventAttemptAbandoned
	}
	return EventAttemptCompleted
}

type ResultRecorder interface {
	Name() string
	Record(ctx context.Context, a CompletedAttempt) error
}

type AttemptResultStore interface {
	Create(res *model.AttemptResult) error
}

// StoreRecorder 写入数据库
type StoreRecorder struct {
	Repo AttemptResultStore
}

func (r *StoreRecorder) Name() string { return "database" }

func (r *StoreRecorder) Record(_ context.Context, a CompletedAttempt) error {
	return r.Repo.Create(model.NewAttemptResult(a.Result, a.LessonID, a.ClassID))
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamRecorder 追加到 redis stream，供下游分析消费
type StreamRecorder struct {
	Client streamAdder
	Stream string
	MaxLen int64
}

func NewStreamRecorder(rdb *redis.Client, stream string, maxLen int64) *StreamRecorder {
	return &StreamRecorder{Client: rdb, Stream: stream, MaxLen: maxLen}
}

func (r *StreamRecorder) Name() string { return "redis" }

func (r *StreamRecorder) Record(ctx context.Context, a CompletedAttempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.Stream,
		MaxLen: r.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":       a.EventType(),
			"sessionId":  a.Result.SessionID,
			"learnerId":  a.Result.LearnerID,
			"activityId": a.Result.ActivityID,
			"payload":    string(payload),
		},
	}).Err()
}

// EventRecorder 发布到 AMQP topic exchange
type EventRecorder struct {
	Publisher events.Publisher
}

func (r *EventRecorder) Name() string { return "amqp" }

func (r *EventRecorder) Record(_ context.Context, a CompletedAttempt) error {
	return r.Publisher.Publish(a.EventType(), a)
}

// MultiRecorder 异步扇出到所有记录端。失败只记日志和指标，不影响会话
type MultiRecorder struct {
	recorders []ResultRecorder
	timeout   time.Duration
	wg        sync.WaitGroup

	mu      sync.Mutex
	waiting bool
}

func NewMultiRecorder(timeout time.Duration, recorders ...ResultRecorder) *MultiRecorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MultiRecorder{recorders: recorders, timeout: timeout}
}

func (m *MultiRecorder) Add(r ResultRecorder) {
	m.recorders = append(m.recorders, r)
}

// RecordAsync 在 Wait 开始之后退化为同步写入，结果不会丢失
func (m *MultiRecorder) RecordAsync(a CompletedAttempt) {
	m.mu.Lock()
	if m.waiting {
		m.mu.Unlock()
		m.record(a)
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		m.record(a)
	}()
}

func (m *MultiRecorder) record(a CompletedAttempt) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "attempt.record",
		attribute.String("session.id", a.Result.SessionID),
		attribute.String("event.type", a.EventType()))
	var firstErr error
	for _, r := range m.recorders {
		if err := r.Record(ctx, a); err != nil {
			monitoring.RecorderFailures.WithLabelValues(r.Name()).Inc()
			logger.Log.Error("Failed to record attempt result",
				zap.String("sink", r.Name()),
				zap.String("sessionId", a.Result.SessionID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	tracing.End(span, firstErr)
}

// Wait 等待进行中的记录完成，用于停机
func (m *MultiRecorder) Wait() {
	m.mu.Lock()
	m.waiting = true
	m.mu.Unlock()
	m.wg.Wait()
}
