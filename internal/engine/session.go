package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status int

const (
	NotStarted Status = iota
	InProgress
	Paused
	Completed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is the immutable outcome of a finished attempt. CorrectCount and
// TotalCount are nil for types scored by a binary rule.
type Result struct {
	SessionID        string        `json:"sessionId"`
	ActivityID       string        `json:"activityId"`
	LearnerID        string        `json:"learnerId,omitempty"`
	Kind             Kind          `json:"kind"`
	Score            int           `json:"score"`
	CorrectCount     *int          `json:"correctCount,omitempty"`
	TotalCount       *int          `json:"totalCount,omitempty"`
	TimeSpentSeconds int           `json:"timeSpentSeconds"`
	Points           int           `json:"points"`
	Expired          bool          `json:"expired"`
	Abandoned        bool          `json:"abandoned"`
	Mistakes         int           `json:"mistakes,omitempty"`
	Artifact         string        `json:"artifact,omitempty"`
	Items            []ItemOutcome `json:"items,omitempty"`
	CompletedAt      time.Time     `json:"completedAt"`
}

// EarnedPoints is the activity weight scaled by the score.
func (r Result) EarnedPoints() float64 {
	return float64(r.Points) * float64(r.Score) / 100
}

type Option func(*Session)

func WithID(id string) Option { return func(s *Session) { s.id = id } }

func WithLearner(id string) Option { return func(s *Session) { s.learnerID = id } }

func WithTicks(t TickSource) Option { return func(s *Session) { s.ticks = t } }

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithCompletionListener(fn func(Result)) Option {
	return func(s *Session) { s.listeners = append(s.listeners, fn) }
}

// Session runs one learner's attempt at one activity. All methods are safe
// for concurrent use; ticks and caller actions are serialized on one lock.
type Session struct {
	mu sync.Mutex

	id        string
	learnerID string
	activity  *Activity
	layout    layout

	status   Status
	timer    Timer
	answers  *Answers
	step     int
	mistakes int
	artifact string
	result   *Result

	ticks       TickSource
	cancelTicks func()
	generation  uint64

	listeners []func(Result)
	log       *zap.Logger
	now       func() time.Time
}

// NewSession prepares an attempt in the NotStarted state.
func NewSession(a *Activity, opts ...Option) *Session {
	l := layoutOf(a)
	s := &Session{
		activity: a,
		layout:   l,
		answers:  newAnswers(l),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.ticks == nil {
		s.ticks = NewManualTicks()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.log = s.log.With(zap.String("sessionId", s.id), zap.String("activityId", a.ID), zap.String("kind", string(a.Kind())))
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) LearnerID() string { return s.learnerID }

func (s *Session) Activity() *Activity { return s.activity }

func (s *Session) StepCount() int { return len(s.layout.steps) }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the cached result once the session is completed.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// OnComplete registers fn to receive the result. If the session is already
// completed fn runs immediately.
func (s *Session) OnComplete(fn func(Result)) {
	s.mu.Lock()
	if s.result != nil {
		res := *s.result
		s.mu.Unlock()
		s.emit([]func(Result){fn}, res)
		return
	}
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != NotStarted {
		return &TransitionError{Op: "start", State: s.status}
	}
	limit, limited := s.activity.TimeLimitSeconds()
	s.timer.Start(limit, limited)
	s.status = InProgress
	s.subscribeLocked()
	s.log.Debug("session started", zap.Int("timeLimitSeconds", limit), zap.Int("steps", len(s.layout.steps)))
	return nil
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != InProgress {
		return &TransitionError{Op: "pause", State: s.status}
	}
	s.timer.Pause()
	s.unsubscribeLocked()
	s.status = Paused
	s.log.Debug("session paused", zap.Int("elapsed", s.timer.Elapsed()))
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != Paused {
		return &TransitionError{Op: "resume", State: s.status}
	}
	s.timer.Resume()
	s.status = InProgress
	s.subscribeLocked()
	s.log.Debug("session resumed", zap.Int("elapsed", s.timer.Elapsed()))
	return nil
}

// SetAnswer records the response for one item, replacing any earlier one.
// Question items take an option index, blanks take text, matching pairs take
// the id of the right-hand entry chosen for them. A wrong match returns
// ErrMatchRejected and is not stored; matching the last pair completes the
// session.
func (s *Session) SetAnswer(itemID string, value any) error {
	s.mu.Lock()
	if s.status != InProgress {
		st := s.status
		s.mu.Unlock()
		return &TransitionError{Op: "set answer", State: st}
	}
	finished, err := s.setAnswerLocked(itemID, value)
	if err != nil || !finished {
		s.mu.Unlock()
		return err
	}
	res, listeners := s.finishLocked(false, false)
	s.mu.Unlock()
	s.emit(listeners, res)
	return nil
}

func (s *Session) setAnswerLocked(itemID string, value any) (bool, error) {
	kind, ok := s.layout.kinds[itemID]
	if !ok {
		return false, fmt.Errorf("%w: unknown item %q", ErrInvalidAnswer, itemID)
	}
	switch kind {
	case itemChoice:
		idx, ok := asIndex(value)
		if !ok {
			return false, fmt.Errorf("%w: item %q expects an option index, got %T", ErrInvalidAnswer, itemID, value)
		}
		if n := s.layout.options[itemID]; idx < 0 || idx >= n {
			return false, fmt.Errorf("%w: option %d out of range [0,%d) for %q", ErrInvalidAnswer, idx, n, itemID)
		}
		s.answers.Set(itemID, idx)
	case itemText:
		text, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("%w: item %q expects text, got %T", ErrInvalidAnswer, itemID, value)
		}
		s.answers.Set(itemID, text)
	case itemPair:
		right, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("%w: pair %q expects a pair id, got %T", ErrInvalidAnswer, itemID, value)
		}
		if right != itemID {
			s.mistakes++
			s.log.Debug("match rejected", zap.String("pair", itemID), zap.String("guess", right), zap.Int("mistakes", s.mistakes))
			return false, fmt.Errorf("%w: %q does not belong with %q", ErrMatchRejected, right, itemID)
		}
		s.answers.Set(itemID, right)
		for _, id := range s.layout.items {
			if !s.answers.Has(id) {
				return false, nil
			}
		}
		s.answers.signal()
		return true, nil
	}
	return false, nil
}

// SubmitStep answers the current step's item and advances. Steps without a
// single item (matching, speaking, media without questions) only advance and
// take a nil value.
func (s *Session) SubmitStep(value any) error {
	s.mu.Lock()
	if s.status != InProgress {
		st := s.status
		s.mu.Unlock()
		return &TransitionError{Op: "submit step", State: st}
	}
	items := s.layout.steps[s.step]
	switch {
	case len(items) == 1:
		finished, err := s.setAnswerLocked(items[0], value)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if finished {
			res, listeners := s.finishLocked(false, false)
			s.mu.Unlock()
			s.emit(listeners, res)
			return nil
		}
	case value != nil:
		step := s.step
		s.mu.Unlock()
		return fmt.Errorf("%w: step %d takes no single answer", ErrInvalidAnswer, step)
	}
	return s.advanceUnlock()
}

// AdvanceStep moves to the next step; advancing from the last step
// completes the session.
func (s *Session) AdvanceStep() error {
	s.mu.Lock()
	if s.status != InProgress {
		st := s.status
		s.mu.Unlock()
		return &TransitionError{Op: "advance", State: st}
	}
	return s.advanceUnlock()
}

// advanceUnlock is entered with the lock held and releases it.
func (s *Session) advanceUnlock() error {
	if s.step < len(s.layout.steps)-1 {
		s.step++
		s.mu.Unlock()
		return nil
	}
	res, listeners := s.finishLocked(false, false)
	s.mu.Unlock()
	s.emit(listeners, res)
	return nil
}

// RetreatStep moves back one step; it stays at the first step.
func (s *Session) RetreatStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != InProgress {
		return &TransitionError{Op: "retreat", State: s.status}
	}
	if s.step > 0 {
		s.step--
	}
	return nil
}

// MarkConsumed records that the listening audio was played through or the
// reading text was read to the end.
func (s *Session) MarkConsumed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != InProgress {
		return &TransitionError{Op: "mark consumed", State: s.status}
	}
	switch s.activity.Kind() {
	case KindListening, KindReading:
	default:
		return fmt.Errorf("%w: %s activity has no media to consume", ErrInvalidAnswer, s.activity.Kind())
	}
	s.answers.signal()
	return nil
}

// MarkRecorded records the speaking artifact. durationSeconds is checked
// against the activity's recording cap when one is set.
func (s *Session) MarkRecorded(artifact string, durationSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != InProgress {
		return &TransitionError{Op: "mark recorded", State: s.status}
	}
	sp, ok := s.activity.Content.(*SpeakingContent)
	if !ok {
		return fmt.Errorf("%w: %s activity takes no recording", ErrInvalidAnswer, s.activity.Kind())
	}
	if artifact == "" {
		return fmt.Errorf("%w: empty recording reference", ErrInvalidAnswer)
	}
	if sp.MaxRecordingSeconds > 0 && durationSeconds > float64(sp.MaxRecordingSeconds) {
		return fmt.Errorf("%w: recording is %.1fs, cap is %ds", ErrInvalidAnswer, durationSeconds, sp.MaxRecordingSeconds)
	}
	s.artifact = artifact
	s.answers.signal()
	return nil
}

// Complete scores and freezes the session. Later calls return the cached
// result without scoring again.
func (s *Session) Complete() (Result, error) {
	s.mu.Lock()
	switch s.status {
	case Completed:
		res := *s.result
		s.mu.Unlock()
		return res, nil
	case NotStarted:
		s.mu.Unlock()
		return Result{}, &TransitionError{Op: "complete", State: NotStarted}
	}
	res, listeners := s.finishLocked(false, false)
	s.mu.Unlock()
	s.emit(listeners, res)
	return res, nil
}

// Submit is the learner-facing name for Complete.
func (s *Session) Submit() (Result, error) { return s.Complete() }

// Abandon ends the attempt from any non-terminal state with a zero score
// flagged as abandoned. Item counts reflect what was answered so far.
func (s *Session) Abandon() (Result, error) {
	s.mu.Lock()
	if s.status == Completed {
		s.mu.Unlock()
		return Result{}, &TransitionError{Op: "abandon", State: Completed}
	}
	res, listeners := s.finishLocked(false, true)
	s.mu.Unlock()
	s.emit(listeners, res)
	return res, nil
}

func (s *Session) subscribeLocked() {
	s.unsubscribeLocked()
	s.generation++
	gen := s.generation
	s.cancelTicks = s.ticks.Subscribe(func() { s.onTick(gen) })
}

func (s *Session) unsubscribeLocked() {
	if s.cancelTicks != nil {
		s.cancelTicks()
		s.cancelTicks = nil
	}
	s.generation++
}

func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.status != InProgress {
		s.mu.Unlock()
		return
	}
	if !s.timer.Tick() {
		s.mu.Unlock()
		return
	}
	s.log.Info("time limit reached, submitting")
	res, listeners := s.finishLocked(true, false)
	s.mu.Unlock()
	s.emit(listeners, res)
}

// finishLocked moves the session to Completed and builds its result. The
// caller holds the lock and must emit to the returned listeners after
// releasing it.
func (s *Session) finishLocked(expired, abandoned bool) (Result, []func(Result)) {
	s.timer.Stop()
	s.unsubscribeLocked()

	out := Score(s.activity, s.answers)
	res := Result{
		SessionID:        s.id,
		ActivityID:       s.activity.ID,
		LearnerID:        s.learnerID,
		Kind:             s.activity.Kind(),
		Score:            out.Score,
		TimeSpentSeconds: s.timer.Elapsed(),
		Points:           s.activity.Points,
		Expired:          expired,
		Abandoned:        abandoned,
		Mistakes:         s.mistakes,
		Artifact:         s.artifact,
		Items:            out.Items,
		CompletedAt:      s.now(),
	}
	if out.Counted {
		correct, total := out.Correct, out.Total
		res.CorrectCount, res.TotalCount = &correct, &total
	}
	if abandoned {
		res.Score = 0
	}
	s.status = Completed
	s.result = &res

	listeners := s.listeners
	s.listeners = nil
	s.log.Info("session completed",
		zap.Int("score", res.Score),
		zap.Int("timeSpent", res.TimeSpentSeconds),
		zap.Bool("expired", expired),
		zap.Bool("abandoned", abandoned))
	return res, listeners
}

func (s *Session) emit(listeners []func(Result), res Result) {
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("completion listener panicked", zap.Any("panic", r))
				}
			}()
			fn(res)
		}()
	}
}

// Snapshot is a point-in-time read model of a session for hosts.
type Snapshot struct {
	SessionID        string         `json:"sessionId"`
	ActivityID       string         `json:"activityId"`
	Kind             Kind           `json:"kind"`
	Status           Status         `json:"status"`
	Step             int            `json:"step"`
	StepCount        int            `json:"stepCount"`
	StepItems        []string       `json:"stepItems"`
	ElapsedSeconds   int            `json:"elapsedSeconds"`
	RemainingSeconds *int           `json:"remainingSeconds,omitempty"`
	Answers          map[string]any `json:"answers"`
	Answered         int            `json:"answered"`
	Required         int            `json:"required"`
	Complete         bool           `json:"complete"`
	Mistakes         int            `json:"mistakes"`
	Result           *Result        `json:"result,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:      s.id,
		ActivityID:     s.activity.ID,
		Kind:           s.activity.Kind(),
		Status:         s.status,
		Step:           s.step,
		StepCount:      len(s.layout.steps),
		StepItems:      append([]string(nil), s.layout.steps[s.step]...),
		ElapsedSeconds: s.timer.Elapsed(),
		Answers:        s.answers.copyValues(),
		Answered:       len(s.answers.Answered()),
		Required:       len(s.layout.items),
		Complete:       s.answers.IsComplete(),
		Mistakes:       s.mistakes,
	}
	if rem, ok := s.timer.Remaining(); ok {
		snap.RemainingSeconds = &rem
	} else if limit, limited := s.activity.TimeLimitSeconds(); limited {
		snap.RemainingSeconds = &limit
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	return snap
}

// asIndex accepts the integer shapes an option index arrives in, including
// whole float64 values from decoded JSON.
func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
