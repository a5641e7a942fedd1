package engine

import "math"

// Summary is the progress of a set of attempts over a lesson or class.
type Summary struct {
	CompletionRate  float64 `json:"completionRate"`
	AverageScore    float64 `json:"averageScore"`
	TotalPoints     float64 `json:"totalPoints"`
	CompletedCount  int     `json:"completedCount"`
	TotalActivities int     `json:"totalActivities"`
}

type attemptKey struct {
	learner  string
	activity string
}

// AggregateProgress folds results into a summary. Each (learner, activity)
// pair counts once, with later results superseding earlier ones. Abandoned
// attempts count toward the total but not as completed.
func AggregateProgress(results []Result) Summary {
	latest, order := latestByAttempt(results, nil)
	return summarize(latest, order, len(order))
}

// Scope restricts aggregation to a lesson's activities and a class's
// learners. Every activity in scope counts toward the total for every
// learner, attempted or not. An empty LearnerIDs takes the learners seen in
// the results.
type Scope struct {
	ActivityIDs []string
	LearnerIDs  []string
}

func (sc Scope) Aggregate(results []Result) Summary {
	activities := toSet(sc.ActivityIDs)
	learners := toSet(sc.LearnerIDs)
	keep := func(r Result) bool {
		if len(activities) > 0 && !activities[r.ActivityID] {
			return false
		}
		return len(learners) == 0 || learners[r.LearnerID]
	}
	latest, order := latestByAttempt(results, keep)

	nLearners := len(learners)
	if nLearners == 0 {
		seen := map[string]bool{}
		for _, k := range order {
			seen[k.learner] = true
		}
		nLearners = len(seen)
	}
	total := len(order)
	if len(activities) > 0 {
		total = len(activities) * nLearners
	}
	return summarize(latest, order, total)
}

func latestByAttempt(results []Result, keep func(Result) bool) (map[attemptKey]Result, []attemptKey) {
	latest := make(map[attemptKey]Result, len(results))
	var order []attemptKey
	for _, r := range results {
		if keep != nil && !keep(r) {
			continue
		}
		k := attemptKey{learner: r.LearnerID, activity: r.ActivityID}
		prev, ok := latest[k]
		if !ok {
			order = append(order, k)
		} else if r.CompletedAt.Before(prev.CompletedAt) {
			continue
		}
		latest[k] = r
	}
	return latest, order
}

func summarize(latest map[attemptKey]Result, order []attemptKey, total int) Summary {
	s := Summary{TotalActivities: total}
	var scoreSum float64
	for _, k := range order {
		r := latest[k]
		if r.Abandoned {
			continue
		}
		s.CompletedCount++
		scoreSum += float64(r.Score)
		s.TotalPoints += r.EarnedPoints()
	}
	if total > 0 {
		s.CompletionRate = float64(s.CompletedCount) / float64(total)
	}
	if s.CompletedCount > 0 {
		s.AverageScore = round2(scoreSum / float64(s.CompletedCount))
	}
	s.CompletionRate = round2(s.CompletionRate)
	s.TotalPoints = round2(s.TotalPoints)
	return s
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
