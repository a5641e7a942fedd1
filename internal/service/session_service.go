package service

import (
	"activity_engine/internal/engine"
	"activity_engine/internal/model"
	"activity_engine/internal/util"
	"activity_engine/pkg/logger"
	"activity_engine/pkg/monitoring"
	"activity_engine/pkg/tracing"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ActivityStore interface {
	FindByID(id string) (*model.Activity, error)
}

// ResultLookup 会话被回收后从持久层读取结果
type ResultLookup interface {
	FindBySession(sessionID string) (*model.AttemptResult, error)
}

type SessionNotifier interface {
	Notify(sessionID string, msg WSMessage)
	Watching(sessionID string) bool
	CloseSession(sessionID string)
}

type liveSession struct {
	session     *engine.Session
	lessonID    string
	classID     string
	createdAt   time.Time
	completedAt time.Time
	lastActive  atomic.Int64 // unix nano
}

func (ls *liveSession) touch(now time.Time) { ls.lastActive.Store(now.UnixNano()) }

func (ls *liveSession) idleSince() time.Time { return time.Unix(0, ls.lastActive.Load()) }

// TickPayload 推送给订阅者的计时信息
type TickPayload struct {
	ElapsedSeconds   int  `json:"elapsedSeconds"`
	RemainingSeconds *int `json:"remainingSeconds,omitempty"`
}

// SessionService 管理内存中的会话
type SessionService struct {
	Activities ActivityStore
	Results    ResultLookup
	Recorder   *MultiRecorder
	Notifier   SessionNotifier

	ticks engine.TickSource
	now   func() time.Time

	mu          sync.RWMutex
	sessions    map[string]*liveSession
	retention   time.Duration
	idleTimeout time.Duration

	stopBroadcast func()
}

func NewSessionService(activities ActivityStore, results ResultLookup, ticks engine.TickSource, recorder *MultiRecorder, notifier SessionNotifier, retention time.Duration) *SessionService {
	s := &SessionService{
		Activities: activities,
		Results:    results,
		Recorder:   recorder,
		Notifier:   notifier,
		ticks:      ticks,
		now:        time.Now,
		sessions:   make(map[string]*liveSession),
		retention:  retention,
	}
	if notifier != nil {
		s.stopBroadcast = ticks.Subscribe(s.broadcastTicks)
	}
	return s
}

// Create 为学员创建一个新的会话，状态为 not_started
func (s *SessionService) Create(learnerID, activityID string) (engine.Snapshot, error) {
	row, err := s.Activities.FindByID(activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Snapshot{}, util.ErrActivityNotFound
		}
		return engine.Snapshot{}, err
	}
	activity, err := row.Parse()
	if err != nil {
		logger.Log.Warn("Stored activity failed validation",
			zap.String("activityId", activityID), zap.Error(err))
		return engine.Snapshot{}, err
	}

	ls := &liveSession{lessonID: row.LessonID, classID: row.ClassID, createdAt: s.now()}
	ls.session = engine.NewSession(activity,
		engine.WithLearner(learnerID),
		engine.WithTicks(s.ticks),
		engine.WithLogger(logger.Log.Named("engine")),
		engine.WithClock(s.now),
	)
	ls.session.OnComplete(func(res engine.Result) { s.onComplete(ls, res) })
	ls.touch(ls.createdAt)

	s.mu.Lock()
	s.sessions[ls.session.ID()] = ls
	s.mu.Unlock()
	monitoring.LiveSessions.Inc()

	logger.Log.Info("Session created",
		zap.String("sessionId", ls.session.ID()),
		zap.String("learnerId", learnerID),
		zap.String("activityId", activityID))
	return ls.session.Snapshot(), nil
}

func (s *SessionService) lookup(learnerID, sessionID string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	if ls.session.LearnerID() != learnerID {
		return nil, util.ErrSessionForbidden
	}
	return ls, nil
}

func (s *SessionService) do(learnerID, sessionID string, fn func(*engine.Session) error) (engine.Snapshot, error) {
	ls, err := s.lookup(learnerID, sessionID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	ls.touch(s.now())
	if err := fn(ls.session); err != nil {
		return engine.Snapshot{}, err
	}
	return ls.session.Snapshot(), nil
}

func (s *SessionService) Snapshot(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, func(*engine.Session) error { return nil })
}

func (s *SessionService) Start(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, func(sess *engine.Session) error {
		if err := sess.Start(); err != nil {
			return err
		}
		monitoring.SessionsStarted.WithLabelValues(string(sess.Activity().Kind())).Inc()
		return nil
	})
}

func (s *SessionService) Pause(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, (*engine.Session).Pause)
}

func (s *SessionService) Resume(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, (*engine.Session).Resume)
}

func (s *SessionService) Answer(learnerID, sessionID, itemID string, value any) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, func(sess *engine.Session) error {
		return sess.SetAnswer(itemID, value)
	})
}

func (s *SessionService) SubmitStep(learnerID, sessionID string, value any) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, func(sess *engine.Session) error {
		return sess.SubmitStep(value)
	})
}

func (s *SessionService) Advance(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, (*engine.Session).AdvanceStep)
}

func (s *SessionService) Retreat(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, (*engine.Session).RetreatStep)
}

func (s *SessionService) Consumed(learnerID, sessionID string) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, (*engine.Session).MarkConsumed)
}

func (s *SessionService) MarkRecorded(learnerID, sessionID, artifact string, durationSeconds float64) (engine.Snapshot, error) {
	return s.do(learnerID, sessionID, func(sess *engine.Session) error {
		return sess.MarkRecorded(artifact, durationSeconds)
	})
}

// Activity 返回会话对应的活动定义以及当前状态
func (s *SessionService) Activity(learnerID, sessionID string) (*engine.Activity, engine.Status, error) {
	ls, err := s.lookup(learnerID, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return ls.session.Activity(), ls.session.Status(), nil
}

func (s *SessionService) Submit(ctx context.Context, learnerID, sessionID string) (engine.Result, error) {
	_, span := tracing.StartSpan(ctx, "session.submit", attribute.String("session.id", sessionID))
	ls, err := s.lookup(learnerID, sessionID)
	if err != nil {
		tracing.End(span, err)
		return engine.Result{}, err
	}
	ls.touch(s.now())
	res, err := ls.session.Submit()
	if err == nil {
		span.SetAttributes(attribute.Int("session.score", res.Score))
	}
	tracing.End(span, err)
	return res, err
}

func (s *SessionService) Abandon(ctx context.Context, learnerID, sessionID string) (engine.Result, error) {
	_, span := tracing.StartSpan(ctx, "session.abandon", attribute.String("session.id", sessionID))
	ls, err := s.lookup(learnerID, sessionID)
	if err != nil {
		tracing.End(span, err)
		return engine.Result{}, err
	}
	ls.touch(s.now())
	res, err := ls.session.Abandon()
	tracing.End(span, err)
	return res, err
}

// Result 先查内存，会话已回收时回退到持久层
func (s *SessionService) Result(learnerID, sessionID string) (engine.Result, error) {
	ls, err := s.lookup(learnerID, sessionID)
	switch {
	case err == nil:
		res, ok := ls.session.Result()
		if !ok {
			return engine.Result{}, &engine.TransitionError{Op: "read result", State: ls.session.Status()}
		}
		return res, nil
	case !errors.Is(err, util.ErrSessionNotFound) || s.Results == nil:
		return engine.Result{}, err
	}

	row, err := s.Results.FindBySession(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Result{}, util.ErrSessionNotFound
		}
		return engine.Result{}, err
	}
	if row.LearnerID != learnerID {
		return engine.Result{}, util.ErrSessionForbidden
	}
	return row.ToResult(), nil
}

func (s *SessionService) onComplete(ls *liveSession, res engine.Result) {
	kind := string(res.Kind)
	monitoring.SessionsCompleted.WithLabelValues(kind, monitoring.Outcome(res.Expired, res.Abandoned)).Inc()
	if !res.Abandoned {
		monitoring.SessionScore.WithLabelValues(kind).Observe(float64(res.Score))
	}

	s.mu.Lock()
	ls.completedAt = s.now()
	s.mu.Unlock()

	if s.Recorder != nil {
		s.Recorder.RecordAsync(CompletedAttempt{Result: res, LessonID: ls.lessonID, ClassID: ls.classID})
	}
	if s.Notifier != nil {
		msgType := MsgCompleted
		if res.Expired {
			msgType = MsgExpired
		}
		s.Notifier.Notify(res.SessionID, WSMessage{Type: msgType, Data: res})
		s.Notifier.CloseSession(res.SessionID)
	}
}

func (s *SessionService) broadcastTicks() {
	s.mu.RLock()
	watched := make([]*engine.Session, 0)
	for id, ls := range s.sessions {
		if ls.completedAt.IsZero() && s.Notifier.Watching(id) {
			watched = append(watched, ls.session)
		}
	}
	s.mu.RUnlock()

	for _, sess := range watched {
		snap := sess.Snapshot()
		if snap.Status != engine.InProgress {
			continue
		}
		s.Notifier.Notify(snap.SessionID, WSMessage{Type: MsgTick, Data: TickPayload{
			ElapsedSeconds:   snap.ElapsedSeconds,
			RemainingSeconds: snap.RemainingSeconds,
		}})
	}
}

func (s *SessionService) SetRetention(d time.Duration) {
	s.mu.Lock()
	s.retention = d
	s.mu.Unlock()
}

// SetIdleTimeout 设置进行中或暂停的会话无操作多久后被放弃，0 表示不限
func (s *SessionService) SetIdleTimeout(d time.Duration) {
	s.mu.Lock()
	s.idleTimeout = d
	s.mu.Unlock()
}

// abandonIdle 放弃超过闲置时间的进行中/暂停会话，结果照常记录
func (s *SessionService) abandonIdle(now time.Time) int {
	s.mu.RLock()
	var stale []*liveSession
	if s.idleTimeout > 0 {
		for _, ls := range s.sessions {
			if !ls.completedAt.IsZero() || now.Sub(ls.idleSince()) < s.idleTimeout {
				continue
			}
			if st := ls.session.Status(); st == engine.InProgress || st == engine.Paused {
				stale = append(stale, ls)
			}
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, ls := range stale {
		// 与用户操作并发时可能已经完成
		if _, err := ls.session.Abandon(); err != nil {
			continue
		}
		n++
		logger.Log.Info("Idle session abandoned",
			zap.String("sessionId", ls.session.ID()),
			zap.Time("lastActive", ls.idleSince()))
	}
	return n
}

// Sweep 先放弃闲置超时的会话，再回收已完成且超过保留期的会话以及超过保留期仍未开始的会话
func (s *SessionService) Sweep(now time.Time) int {
	s.abandonIdle(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, ls := range s.sessions {
		var since time.Time
		switch {
		case !ls.completedAt.IsZero():
			since = ls.completedAt
		case ls.session.Status() == engine.NotStarted:
			since = ls.createdAt
		default:
			continue
		}
		if now.Sub(since) < s.retention {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	if evicted > 0 {
		monitoring.LiveSessions.Sub(float64(evicted))
		logger.Log.Debug("Swept sessions", zap.Int("evicted", evicted), zap.Int("live", len(s.sessions)))
	}
	return evicted
}

func (s *SessionService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close 停止计时推送并暂停所有进行中的会话，之后不会再有到期提交
func (s *SessionService) Close() {
	if s.stopBroadcast != nil {
		s.stopBroadcast()
	}
	s.mu.RLock()
	live := make([]*engine.Session, 0, len(s.sessions))
	for _, ls := range s.sessions {
		live = append(live, ls.session)
	}
	s.mu.RUnlock()

	paused := 0
	for _, sess := range live {
		if sess.Pause() == nil {
			paused++
		}
	}
	logger.Log.Info("Session service closed", zap.Int("liveSessions", len(live)), zap.Int("paused", paused))
}
