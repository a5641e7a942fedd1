package engine

import (
	"fmt"
	"strings"
)

// RawActivity is the authored shape of an activity as produced by the
// authoring layer (JSON in the database, YAML or JSON in import files).
type RawActivity struct {
	ID            string     `json:"id" yaml:"id"`
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description" yaml:"description"`
	Difficulty    string     `json:"difficulty" yaml:"difficulty"`
	EstimatedTime int        `json:"estimatedTime" yaml:"estimatedTime"`
	Points        int        `json:"points" yaml:"points"`
	TimeLimit     *int       `json:"timeLimit,omitempty" yaml:"timeLimit,omitempty"`
	Type          string     `json:"type" yaml:"type"`
	Content       RawContent `json:"content" yaml:"content"`
}

// RawContent carries every type's fields; ParseActivity keeps only those
// belonging to the declared type.
type RawContent struct {
	Questions     []RawQuestion   `json:"questions,omitempty" yaml:"questions,omitempty"`
	Pairs         []RawPair       `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	Words         []RawBlank      `json:"words,omitempty" yaml:"words,omitempty"`
	Text          string          `json:"text,omitempty" yaml:"text,omitempty"`
	AudioURL      string          `json:"audioUrl,omitempty" yaml:"audioUrl,omitempty"`
	Transcript    string          `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	Prompt        string          `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	TargetPhrases []string        `json:"targetPhrases,omitempty" yaml:"targetPhrases,omitempty"`
	MaxDuration   int             `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"` // seconds
	Vocabulary    []RawVocabulary `json:"vocabulary,omitempty" yaml:"vocabulary,omitempty"`
}

type RawQuestion struct {
	ID            string   `json:"id" yaml:"id"`
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer *int     `json:"correctAnswer" yaml:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

type RawPair struct {
	ID      string `json:"id" yaml:"id"`
	Left    string `json:"left" yaml:"left"`
	Right   string `json:"right" yaml:"right"`
	Shuffle *bool  `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
}

type RawBlank struct {
	ID   string `json:"id" yaml:"id"`
	Word string `json:"word" yaml:"word"`
	Hint string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

type RawVocabulary struct {
	Word       string `json:"word" yaml:"word"`
	Definition string `json:"definition" yaml:"definition"`
}

// ParseActivity validates raw authored data and normalizes it into an
// Activity. Every failure wraps ErrInvalidDefinition.
func ParseActivity(raw RawActivity) (*Activity, error) {
	a := &Activity{
		ID:            strings.TrimSpace(raw.ID),
		Title:         strings.TrimSpace(raw.Title),
		Description:   raw.Description,
		EstimatedTime: raw.EstimatedTime,
		Points:        raw.Points,
	}
	if a.ID == "" {
		return nil, invalidf("id", "required")
	}
	if a.Title == "" {
		return nil, invalidf("title", "required")
	}

	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw.Difficulty))); d {
	case "":
		a.Difficulty = Beginner
	case Beginner, Intermediate, Advanced:
		a.Difficulty = d
	default:
		return nil, invalidf("difficulty", "unknown value %q", raw.Difficulty)
	}

	if a.EstimatedTime < 0 {
		return nil, invalidf("estimatedTime", "must not be negative")
	}
	if a.Points < 0 {
		return nil, invalidf("points", "must not be negative")
	}
	if raw.TimeLimit != nil {
		if *raw.TimeLimit < 0 {
			return nil, invalidf("timeLimit", "must not be negative")
		}
		a.TimeLimit = *raw.TimeLimit
	}

	content, err := parseContent(Kind(strings.TrimSpace(raw.Type)), raw.Content)
	if err != nil {
		return nil, err
	}
	a.Content = content
	return a, nil
}

func parseContent(kind Kind, c RawContent) (Content, error) {
	switch kind {
	case KindQuiz:
		if len(c.Questions) == 0 {
			return nil, invalidf("content.questions", "quiz needs at least one question")
		}
		qs, err := parseQuestions("content.questions", c.Questions)
		if err != nil {
			return nil, err
		}
		return &QuizContent{Questions: qs}, nil

	case KindMatching:
		if len(c.Pairs) == 0 {
			return nil, invalidf("content.pairs", "matching needs at least one pair")
		}
		pairs := make([]Pair, len(c.Pairs))
		seen := map[string]bool{}
		for i, p := range c.Pairs {
			field := fmt.Sprintf("content.pairs[%d]", i)
			id := itemID(p.ID, "p", i)
			if seen[id] {
				return nil, invalidf(field+".id", "duplicate id %q", id)
			}
			seen[id] = true
			if strings.TrimSpace(p.Left) == "" || strings.TrimSpace(p.Right) == "" {
				return nil, invalidf(field, "left and right are required")
			}
			shuffle := true
			if p.Shuffle != nil {
				shuffle = *p.Shuffle
			}
			pairs[i] = Pair{ID: id, Left: p.Left, Right: p.Right, Shuffle: shuffle}
		}
		return &MatchingContent{Pairs: pairs}, nil

	case KindFillBlank:
		if len(c.Words) == 0 {
			return nil, invalidf("content.words", "fill-blank needs at least one word")
		}
		blanks := make([]Blank, len(c.Words))
		seen := map[string]bool{}
		for i, w := range c.Words {
			field := fmt.Sprintf("content.words[%d]", i)
			id := itemID(w.ID, "b", i)
			if seen[id] {
				return nil, invalidf(field+".id", "duplicate id %q", id)
			}
			seen[id] = true
			if strings.TrimSpace(w.Word) == "" {
				return nil, invalidf(field+".word", "required")
			}
			blanks[i] = Blank{ID: id, Word: w.Word, Hint: w.Hint}
		}
		if n := countBlankMarkers(c.Text); n > 0 && n != len(blanks) {
			return nil, invalidf("content.text", "has %d blank markers for %d words", n, len(blanks))
		}
		return &FillBlankContent{Blanks: blanks, Text: c.Text}, nil

	case KindListening:
		if strings.TrimSpace(c.AudioURL) == "" {
			return nil, invalidf("content.audioUrl", "required")
		}
		qs, err := parseQuestions("content.questions", c.Questions)
		if err != nil {
			return nil, err
		}
		return &ListeningContent{AudioURL: c.AudioURL, Transcript: c.Transcript, Questions: qs}, nil

	case KindSpeaking:
		if strings.TrimSpace(c.Prompt) == "" {
			return nil, invalidf("content.prompt", "required")
		}
		if c.MaxDuration < 0 {
			return nil, invalidf("content.maxDuration", "must not be negative")
		}
		return &SpeakingContent{
			Prompt:              c.Prompt,
			TargetPhrases:       c.TargetPhrases,
			MaxRecordingSeconds: c.MaxDuration,
		}, nil

	case KindReading:
		if strings.TrimSpace(c.Text) == "" {
			return nil, invalidf("content.text", "required")
		}
		qs, err := parseQuestions("content.questions", c.Questions)
		if err != nil {
			return nil, err
		}
		vocab := make([]VocabularyEntry, 0, len(c.Vocabulary))
		for _, v := range c.Vocabulary {
			vocab = append(vocab, VocabularyEntry{Word: v.Word, Definition: v.Definition})
		}
		return &ReadingContent{Text: c.Text, Vocabulary: vocab, Questions: qs}, nil
	}
	return nil, invalidf("type", "unknown activity type %q", kind)
}

func parseQuestions(field string, raw []RawQuestion) ([]Question, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Question, len(raw))
	seen := map[string]bool{}
	for i, q := range raw {
		f := fmt.Sprintf("%s[%d]", field, i)
		id := itemID(q.ID, "q", i)
		if seen[id] {
			return nil, invalidf(f+".id", "duplicate id %q", id)
		}
		seen[id] = true
		if len(q.Options) < 2 {
			return nil, invalidf(f+".options", "needs at least two options")
		}
		if q.CorrectAnswer == nil {
			return nil, invalidf(f+".correctAnswer", "required")
		}
		if *q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options) {
			return nil, invalidf(f+".correctAnswer", "index %d out of range [0,%d)", *q.CorrectAnswer, len(q.Options))
		}
		out[i] = Question{
			ID:           id,
			Prompt:       q.Question,
			Options:      q.Options,
			CorrectIndex: *q.CorrectAnswer,
			Explanation:  q.Explanation,
		}
	}
	return out, nil
}

// itemID keeps an authored id or derives a stable one from the position.
func itemID(id, prefix string, i int) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return fmt.Sprintf("%s%d", prefix, i+1)
}
