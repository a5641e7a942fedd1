package engine

import "math"

// ItemOutcome is the correctness of one answerable item.
type ItemOutcome struct {
	ItemID   string `json:"itemId"`
	Answered bool   `json:"answered"`
	Correct  bool   `json:"correct"`
}

// Outcome is what a scoring rule produces. Counted is false for the binary
// rules, whose score does not derive from item counts.
type Outcome struct {
	Score   int
	Correct int
	Total   int
	Counted bool
	Items   []ItemOutcome
}

// Score applies the rule for the activity's type. It is pure: the same
// definition and answers always give the same outcome.
func Score(a *Activity, sheet AnswerSheet) Outcome {
	return Dispatch[Outcome](a.Content, scoreRules{sheet: sheet})
}

type scoreRules struct {
	sheet AnswerSheet
}

var _ Variants[Outcome] = scoreRules{}

func (r scoreRules) Quiz(c *QuizContent) Outcome { return r.questions(c.Questions) }

// Matching is all or nothing. Only correct matches are ever stored, and the
// signal fires when the last pair is matched.
func (r scoreRules) Matching(c *MatchingContent) Outcome {
	out := Outcome{Items: make([]ItemOutcome, 0, len(c.Pairs))}
	for _, p := range c.Pairs {
		matched := r.sheet.Has(p.ID)
		out.Items = append(out.Items, ItemOutcome{ItemID: p.ID, Answered: matched, Correct: matched})
	}
	out.Score = binary(r.sheet.Signalled())
	return out
}

func (r scoreRules) FillBlank(c *FillBlankContent) Outcome {
	out := Outcome{Total: len(c.Blanks), Counted: true, Items: make([]ItemOutcome, 0, len(c.Blanks))}
	for _, b := range c.Blanks {
		text, answered := r.sheet.Text(b.ID)
		correct := answered && normalizeText(text) == normalizeText(b.Word)
		if correct {
			out.Correct++
		}
		out.Items = append(out.Items, ItemOutcome{ItemID: b.ID, Answered: answered, Correct: correct})
	}
	out.Score = percent(out.Correct, out.Total)
	return out
}

func (r scoreRules) Listening(c *ListeningContent) Outcome { return r.media(c.Questions) }

func (r scoreRules) Speaking(*SpeakingContent) Outcome {
	return Outcome{Score: binary(r.sheet.Signalled())}
}

func (r scoreRules) Reading(c *ReadingContent) Outcome { return r.media(c.Questions) }

func (r scoreRules) media(qs []Question) Outcome {
	if len(qs) == 0 {
		return Outcome{Score: binary(r.sheet.Signalled())}
	}
	return r.questions(qs)
}

// questions scores choice items; unanswered ones count as incorrect.
func (r scoreRules) questions(qs []Question) Outcome {
	out := Outcome{Total: len(qs), Counted: true, Items: make([]ItemOutcome, 0, len(qs))}
	for _, q := range qs {
		choice, answered := r.sheet.Choice(q.ID)
		correct := answered && choice == q.CorrectIndex
		if correct {
			out.Correct++
		}
		out.Items = append(out.Items, ItemOutcome{ItemID: q.ID, Answered: answered, Correct: correct})
	}
	out.Score = percent(out.Correct, out.Total)
	return out
}

func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func binary(ok bool) int {
	if ok {
		return 100
	}
	return 0
}
