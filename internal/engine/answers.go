package engine

import "strings"

// AnswerSheet is the read side of an answer store, as seen by scoring.
type AnswerSheet interface {
	Has(itemID string) bool
	Choice(itemID string) (int, bool)
	Text(itemID string) (string, bool)
	Signalled() bool
}

// Answers holds the responses of one attempt. Writes overwrite; there is no
// history per item.
type Answers struct {
	values    map[string]any
	required  []string
	bySignal  bool
	signalled bool
}

func newAnswers(l layout) *Answers {
	return &Answers{
		values:   map[string]any{},
		required: l.items,
		bySignal: l.bySignal,
	}
}

func (a *Answers) Set(itemID string, v any) { a.values[itemID] = v }

func (a *Answers) Get(itemID string) (any, bool) {
	v, ok := a.values[itemID]
	return v, ok
}

func (a *Answers) Has(itemID string) bool {
	_, ok := a.values[itemID]
	return ok
}

func (a *Answers) Choice(itemID string) (int, bool) {
	v, ok := a.values[itemID].(int)
	return v, ok
}

func (a *Answers) Text(itemID string) (string, bool) {
	v, ok := a.values[itemID].(string)
	return v, ok
}

func (a *Answers) signal() { a.signalled = true }

func (a *Answers) Signalled() bool { return a.signalled }

// IsComplete reports whether the attempt has everything it needs: every
// required item answered, or for signal-completed types, the signal.
func (a *Answers) IsComplete() bool {
	if a.bySignal {
		return a.signalled
	}
	for _, id := range a.required {
		if !a.Has(id) {
			return false
		}
	}
	return true
}

// Answered lists answered required ids in definition order.
func (a *Answers) Answered() []string {
	out := make([]string, 0, len(a.values))
	for _, id := range a.required {
		if a.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (a *Answers) copyValues() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// layout is the step and item plan of one activity.
type layout struct {
	steps    [][]string // item ids shown at each step, at least one step
	items    []string   // every answerable item id, in order
	bySignal bool       // completion comes from a type-specific action
	kinds    map[string]itemKind
	options  map[string]int // option count per choice item
}

type itemKind int

const (
	itemChoice itemKind = iota + 1
	itemText
	itemPair
)

type layoutRules struct{}

var _ Variants[layout] = layoutRules{}

func layoutOf(a *Activity) layout { return Dispatch[layout](a.Content, layoutRules{}) }

func questionLayout(qs []Question) layout {
	l := layout{kinds: map[string]itemKind{}, options: map[string]int{}}
	for _, q := range qs {
		l.steps = append(l.steps, []string{q.ID})
		l.items = append(l.items, q.ID)
		l.kinds[q.ID] = itemChoice
		l.options[q.ID] = len(q.Options)
	}
	return l
}

func (layoutRules) Quiz(c *QuizContent) layout { return questionLayout(c.Questions) }

func (layoutRules) Matching(c *MatchingContent) layout {
	l := layout{bySignal: true, kinds: map[string]itemKind{}}
	for _, p := range c.Pairs {
		l.items = append(l.items, p.ID)
		l.kinds[p.ID] = itemPair
	}
	l.steps = [][]string{l.items}
	return l
}

func (layoutRules) FillBlank(c *FillBlankContent) layout {
	l := layout{kinds: map[string]itemKind{}}
	for _, b := range c.Blanks {
		l.steps = append(l.steps, []string{b.ID})
		l.items = append(l.items, b.ID)
		l.kinds[b.ID] = itemText
	}
	return l
}

func mediaLayout(qs []Question) layout {
	if len(qs) > 0 {
		return questionLayout(qs)
	}
	return layout{steps: [][]string{nil}, bySignal: true, kinds: map[string]itemKind{}}
}

func (layoutRules) Listening(c *ListeningContent) layout { return mediaLayout(c.Questions) }

func (layoutRules) Speaking(*SpeakingContent) layout {
	return layout{steps: [][]string{nil}, bySignal: true, kinds: map[string]itemKind{}}
}

func (layoutRules) Reading(c *ReadingContent) layout { return mediaLayout(c.Questions) }

func normalizeText(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
