package engine

import (
	"math/rand"
	"regexp"
)

// Kind is the closed set of exercise types.
type Kind string

const (
	KindQuiz      Kind = "quiz"
	KindMatching  Kind = "matching"
	KindFillBlank Kind = "fill-blank"
	KindListening Kind = "listening"
	KindSpeaking  Kind = "speaking"
	KindReading   Kind = "reading"
)

type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Activity is a validated, immutable exercise definition. Build one with
// ParseActivity; the engine never mutates it.
type Activity struct {
	ID            string
	Title         string
	Description   string
	Difficulty    Difficulty
	EstimatedTime int // minutes, informational
	Points        int
	TimeLimit     int // minutes, 0 means untimed
	Content       Content
}

func (a *Activity) Kind() Kind { return a.Content.Kind() }

// TimeLimitSeconds reports the countdown in seconds and whether one is set.
func (a *Activity) TimeLimitSeconds() (int, bool) {
	if a.TimeLimit <= 0 {
		return 0, false
	}
	return a.TimeLimit * 60, true
}

// Content is the type-specific payload. The set of implementations is closed
// to this package.
type Content interface {
	Kind() Kind
	sealed()
}

type Question struct {
	ID           string
	Prompt       string
	Options      []string
	CorrectIndex int
	Explanation  string
}

type QuizContent struct {
	Questions []Question
}

type Pair struct {
	ID      string
	Left    string
	Right   string
	Shuffle bool
}

type MatchingContent struct {
	Pairs []Pair
}

type Blank struct {
	ID   string
	Word string
	Hint string
}

type FillBlankContent struct {
	Blanks []Blank
	Text   string
}

type ListeningContent struct {
	AudioURL   string
	Transcript string
	Questions  []Question
}

type SpeakingContent struct {
	Prompt              string
	TargetPhrases       []string
	MaxRecordingSeconds int // 0 means no cap
}

type VocabularyEntry struct {
	Word       string
	Definition string
}

type ReadingContent struct {
	Text       string
	Vocabulary []VocabularyEntry
	Questions  []Question
}

func (*QuizContent) Kind() Kind      { return KindQuiz }
func (*MatchingContent) Kind() Kind  { return KindMatching }
func (*FillBlankContent) Kind() Kind { return KindFillBlank }
func (*ListeningContent) Kind() Kind { return KindListening }
func (*SpeakingContent) Kind() Kind  { return KindSpeaking }
func (*ReadingContent) Kind() Kind   { return KindReading }

func (*QuizContent) sealed()      {}
func (*MatchingContent) sealed()  {}
func (*FillBlankContent) sealed() {}
func (*ListeningContent) sealed() {}
func (*SpeakingContent) sealed()  {}
func (*ReadingContent) sealed()   {}

// Variants is implemented by every consumer that branches on the activity
// type. A new type adds a method here, which breaks each implementation at
// compile time until it is handled.
type Variants[T any] interface {
	Quiz(*QuizContent) T
	Matching(*MatchingContent) T
	FillBlank(*FillBlankContent) T
	Listening(*ListeningContent) T
	Speaking(*SpeakingContent) T
	Reading(*ReadingContent) T
}

// Dispatch routes c to the matching method of v.
func Dispatch[T any](c Content, v Variants[T]) T {
	switch c := c.(type) {
	case *QuizContent:
		return v.Quiz(c)
	case *MatchingContent:
		return v.Matching(c)
	case *FillBlankContent:
		return v.FillBlank(c)
	case *ListeningContent:
		return v.Listening(c)
	case *SpeakingContent:
		return v.Speaking(c)
	case *ReadingContent:
		return v.Reading(c)
	}
	// Content is sealed; only a nil Content gets here.
	panic("engine: dispatch on nil content")
}

// RightOrder returns pair ids in the order the right-hand column should be
// shown. Fixed pairs keep their slot, shuffled pairs are permuted among the
// remaining slots.
func (m *MatchingContent) RightOrder(r *rand.Rand) []string {
	out := make([]string, len(m.Pairs))
	var slots []int
	var ids []string
	for i, p := range m.Pairs {
		out[i] = p.ID
		if p.Shuffle {
			slots = append(slots, i)
			ids = append(ids, p.ID)
		}
	}
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for i, slot := range slots {
		out[slot] = ids[i]
	}
	return out
}

var blankMarker = regexp.MustCompile(`_{3,}`)

// Segments splits the carrier text around blank markers. The i-th gap
// between segments belongs to Blanks[i].
func (f *FillBlankContent) Segments() []string {
	if f.Text == "" {
		return nil
	}
	return blankMarker.Split(f.Text, -1)
}

func countBlankMarkers(text string) int {
	return len(blankMarker.FindAllStringIndex(text, -1))
}
