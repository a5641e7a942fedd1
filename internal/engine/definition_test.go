package engine

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func rawQuestion(id string, correct int) RawQuestion {
	return RawQuestion{ID: id, Question: "q " + id, Options: []string{"a", "b", "c"}, CorrectAnswer: intp(correct)}
}

func TestParseActivityValid(t *testing.T) {
	tests := []struct {
		name string
		raw  RawActivity
		kind Kind
	}{
		{"quiz", RawActivity{ID: "a1", Title: "Quiz", Type: "quiz", Content: RawContent{
			Questions: []RawQuestion{rawQuestion("", 0), rawQuestion("", 2)},
		}}, KindQuiz},
		{"matching", RawActivity{ID: "a2", Title: "Match", Type: "matching", Content: RawContent{
			Pairs: []RawPair{{Left: "dog", Right: "perro"}, {Left: "cat", Right: "gato", Shuffle: boolp(false)}},
		}}, KindMatching},
		{"fill blank with markers", RawActivity{ID: "a3", Title: "Fill", Type: "fill-blank", Content: RawContent{
			Words: []RawBlank{{Word: "Paris"}, {Word: "London"}},
			Text:  "The capital of France is ___ and of England is _____.",
		}}, KindFillBlank},
		{"listening without questions", RawActivity{ID: "a4", Title: "Listen", Type: "listening", Content: RawContent{
			AudioURL: "https://cdn.example/a.mp3",
		}}, KindListening},
		{"speaking", RawActivity{ID: "a5", Title: "Speak", Type: "speaking", Content: RawContent{
			Prompt: "Introduce yourself", MaxDuration: 30,
		}}, KindSpeaking},
		{"reading with questions", RawActivity{ID: "a6", Title: "Read", Type: "reading", Difficulty: "Advanced", Content: RawContent{
			Text:      "Once upon a time",
			Questions: []RawQuestion{rawQuestion("r1", 1)},
		}}, KindReading},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseActivity(tt.raw)
			if err != nil {
				t.Fatalf("ParseActivity: %v", err)
			}
			if a.Kind() != tt.kind {
				t.Fatalf("kind = %q, want %q", a.Kind(), tt.kind)
			}
		})
	}
}

func TestParseActivityDefaults(t *testing.T) {
	a, err := ParseActivity(RawActivity{
		ID: " a1 ", Title: "Quiz", Type: "quiz", TimeLimit: intp(5),
		Content: RawContent{Questions: []RawQuestion{rawQuestion("", 0), rawQuestion("", 1)}},
	})
	if err != nil {
		t.Fatalf("ParseActivity: %v", err)
	}
	if a.ID != "a1" {
		t.Errorf("id = %q, want trimmed", a.ID)
	}
	if a.Difficulty != Beginner {
		t.Errorf("difficulty = %q, want beginner", a.Difficulty)
	}
	if secs, ok := a.TimeLimitSeconds(); !ok || secs != 300 {
		t.Errorf("TimeLimitSeconds = %d,%v, want 300,true", secs, ok)
	}
	q := a.Content.(*QuizContent)
	if q.Questions[0].ID != "q1" || q.Questions[1].ID != "q2" {
		t.Errorf("generated ids = %q,%q", q.Questions[0].ID, q.Questions[1].ID)
	}

	m, err := ParseActivity(RawActivity{ID: "m", Title: "M", Type: "matching", Content: RawContent{
		Pairs: []RawPair{{Left: "a", Right: "b"}},
	}})
	if err != nil {
		t.Fatalf("ParseActivity: %v", err)
	}
	if p := m.Content.(*MatchingContent).Pairs[0]; !p.Shuffle || p.ID != "p1" {
		t.Errorf("pair = %+v, want shuffled p1", p)
	}
	if _, ok := m.TimeLimitSeconds(); ok {
		t.Error("absent time limit should be untimed")
	}
}

func TestParseActivityRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   RawActivity
		field string
	}{
		{"missing id", RawActivity{Title: "x", Type: "quiz"}, "id"},
		{"missing title", RawActivity{ID: "x", Type: "quiz"}, "title"},
		{"unknown difficulty", RawActivity{ID: "x", Title: "x", Difficulty: "expert", Type: "quiz"}, "difficulty"},
		{"negative points", RawActivity{ID: "x", Title: "x", Points: -1, Type: "quiz"}, "points"},
		{"negative time limit", RawActivity{ID: "x", Title: "x", TimeLimit: intp(-1), Type: "quiz"}, "timeLimit"},
		{"unknown type", RawActivity{ID: "x", Title: "x", Type: "essay"}, "type"},
		{"quiz without questions", RawActivity{ID: "x", Title: "x", Type: "quiz"}, "content.questions"},
		{"question with one option", RawActivity{ID: "x", Title: "x", Type: "quiz", Content: RawContent{
			Questions: []RawQuestion{{Question: "?", Options: []string{"only"}, CorrectAnswer: intp(0)}},
		}}, "content.questions[0].options"},
		{"correct index out of range", RawActivity{ID: "x", Title: "x", Type: "quiz", Content: RawContent{
			Questions: []RawQuestion{rawQuestion("q", 3)},
		}}, "content.questions[0].correctAnswer"},
		{"missing correct index", RawActivity{ID: "x", Title: "x", Type: "quiz", Content: RawContent{
			Questions: []RawQuestion{{Question: "?", Options: []string{"a", "b"}}},
		}}, "content.questions[0].correctAnswer"},
		{"duplicate question ids", RawActivity{ID: "x", Title: "x", Type: "quiz", Content: RawContent{
			Questions: []RawQuestion{rawQuestion("q", 0), rawQuestion("q", 1)},
		}}, "content.questions[1].id"},
		{"fill blank without words", RawActivity{ID: "x", Title: "x", Type: "fill-blank"}, "content.words"},
		{"marker count mismatch", RawActivity{ID: "x", Title: "x", Type: "fill-blank", Content: RawContent{
			Words: []RawBlank{{Word: "a"}}, Text: "___ and ___",
		}}, "content.text"},
		{"matching without pairs", RawActivity{ID: "x", Title: "x", Type: "matching"}, "content.pairs"},
		{"listening without audio", RawActivity{ID: "x", Title: "x", Type: "listening"}, "content.audioUrl"},
		{"listening with bad question", RawActivity{ID: "x", Title: "x", Type: "listening", Content: RawContent{
			AudioURL: "a.mp3", Questions: []RawQuestion{rawQuestion("q", -1)},
		}}, "content.questions[0].correctAnswer"},
		{"speaking without prompt", RawActivity{ID: "x", Title: "x", Type: "speaking"}, "content.prompt"},
		{"reading without text", RawActivity{ID: "x", Title: "x", Type: "reading"}, "content.text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseActivity(tt.raw)
			if err == nil {
				t.Fatalf("ParseActivity = %+v, want error", a)
			}
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("err = %v, want ErrInvalidDefinition", err)
			}
			var de *DefinitionError
			if !errors.As(err, &de) || de.Field != tt.field {
				t.Fatalf("err = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestRightOrderKeepsFixedPairs(t *testing.T) {
	m := &MatchingContent{Pairs: []Pair{
		{ID: "p1", Shuffle: true},
		{ID: "p2", Shuffle: false},
		{ID: "p3", Shuffle: true},
		{ID: "p4", Shuffle: true},
	}}
	for seed := int64(0); seed < 20; seed++ {
		order := m.RightOrder(rand.New(rand.NewSource(seed)))
		if order[1] != "p2" {
			t.Fatalf("seed %d: fixed pair moved: %v", seed, order)
		}
		seen := map[string]bool{}
		for _, id := range order {
			seen[id] = true
		}
		if len(seen) != 4 {
			t.Fatalf("seed %d: order is not a permutation: %v", seed, order)
		}
	}
}

func TestSegments(t *testing.T) {
	f := &FillBlankContent{Text: "I ___ to school and ____ home."}
	want := []string{"I ", " to school and ", " home."}
	if got := f.Segments(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments = %q, want %q", got, want)
	}
	if got := (&FillBlankContent{}).Segments(); got != nil {
		t.Fatalf("Segments of empty text = %q, want nil", got)
	}
}
