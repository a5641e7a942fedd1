package engine

import "testing"

func quizActivity(n int, timeLimit int) *Activity {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{ID: itemID("", "q", i), Prompt: "?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: i % 4}
	}
	return &Activity{ID: "quiz-1", Title: "Quiz", Points: 10, TimeLimit: timeLimit, Content: &QuizContent{Questions: qs}}
}

func fillBlankActivity(words ...string) *Activity {
	bs := make([]Blank, len(words))
	for i, w := range words {
		bs[i] = Blank{ID: itemID("", "b", i), Word: w}
	}
	return &Activity{ID: "fill-1", Title: "Fill", Points: 20, Content: &FillBlankContent{Blanks: bs}}
}

func matchingActivity(n int, timeLimit int) *Activity {
	ps := make([]Pair, n)
	for i := range ps {
		ps[i] = Pair{ID: itemID("", "p", i), Left: "l", Right: "r", Shuffle: true}
	}
	return &Activity{ID: "match-1", Title: "Match", Points: 15, TimeLimit: timeLimit, Content: &MatchingContent{Pairs: ps}}
}

// sheet is a literal AnswerSheet for exercising rules without a session.
type sheet struct {
	values    map[string]any
	signalled bool
}

func (s sheet) Has(id string) bool {
	_, ok := s.values[id]
	return ok
}

func (s sheet) Choice(id string) (int, bool) {
	v, ok := s.values[id].(int)
	return v, ok
}

func (s sheet) Text(id string) (string, bool) {
	v, ok := s.values[id].(string)
	return v, ok
}

func (s sheet) Signalled() bool { return s.signalled }

func TestScoreQuiz(t *testing.T) {
	a := quizActivity(4, 0)
	tests := []struct {
		name    string
		answers map[string]any
		score   int
		correct int
	}{
		{"none answered", map[string]any{}, 0, 0},
		{"three of four, one unanswered", map[string]any{"q1": 0, "q2": 1, "q3": 2}, 75, 3},
		{"all correct", map[string]any{"q1": 0, "q2": 1, "q3": 2, "q4": 3}, 100, 4},
		{"one wrong", map[string]any{"q1": 1, "q2": 1, "q3": 2, "q4": 3}, 75, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Score(a, sheet{values: tt.answers})
			if out.Score != tt.score || out.Correct != tt.correct || out.Total != 4 || !out.Counted {
				t.Fatalf("Score = %+v, want score %d correct %d of 4", out, tt.score, tt.correct)
			}
		})
	}
}

func TestScoreQuizRounding(t *testing.T) {
	a := quizActivity(3, 0)
	for correct := 0; correct <= 3; correct++ {
		answers := map[string]any{}
		for i := 0; i < correct; i++ {
			answers[itemID("", "q", i)] = i % 4
		}
		want := []int{0, 33, 67, 100}[correct]
		if got := Score(a, sheet{values: answers}).Score; got != want {
			t.Errorf("%d/3 correct: score = %d, want %d", correct, got, want)
		}
	}
}

func TestScoreFillBlankNormalization(t *testing.T) {
	a := fillBlankActivity("Paris", "london", "New York")
	tests := []struct {
		name    string
		answers map[string]any
		correct int
	}{
		{"case and outer space", map[string]any{"b1": " paris ", "b2": "London", "b3": "new york"}, 3},
		{"inner space differs", map[string]any{"b1": "Paris", "b2": "london", "b3": "New  York"}, 2},
		{"spelling differs", map[string]any{"b1": "Pariss", "b2": "london"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Score(a, sheet{values: tt.answers})
			if out.Correct != tt.correct {
				t.Fatalf("correct = %d, want %d (%+v)", out.Correct, tt.correct, out.Items)
			}
		})
	}
}

func TestScoreBinaryRules(t *testing.T) {
	listen := &Activity{ID: "l", Content: &ListeningContent{AudioURL: "a.mp3"}}
	read := &Activity{ID: "r", Content: &ReadingContent{Text: "t"}}
	speak := &Activity{ID: "s", Content: &SpeakingContent{Prompt: "p"}}
	match := matchingActivity(3, 0)
	for _, a := range []*Activity{listen, read, speak, match} {
		t.Run(string(a.Kind()), func(t *testing.T) {
			if out := Score(a, sheet{values: map[string]any{}}); out.Score != 0 || out.Counted {
				t.Fatalf("unsignalled = %+v, want 0 and not counted", out)
			}
			if out := Score(a, sheet{values: map[string]any{}, signalled: true}); out.Score != 100 {
				t.Fatalf("signalled score = %d, want 100", out.Score)
			}
		})
	}
}

func TestScoreMediaWithQuestionsIgnoresSignal(t *testing.T) {
	a := &Activity{ID: "r", Content: &ReadingContent{Text: "t", Questions: []Question{
		{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 1},
		{ID: "q2", Options: []string{"a", "b"}, CorrectIndex: 0},
	}}}
	out := Score(a, sheet{values: map[string]any{"q1": 1}, signalled: true})
	if out.Score != 50 || !out.Counted {
		t.Fatalf("Score = %+v, want 50 counted", out)
	}
}
