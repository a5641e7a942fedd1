package engine

import (
	"testing"
	"time"
)

func result(learner, activity string, score, points int, at int, abandoned bool) Result {
	return Result{
		LearnerID:   learner,
		ActivityID:  activity,
		Score:       score,
		Points:      points,
		Abandoned:   abandoned,
		CompletedAt: fixedNow.Add(time.Duration(at) * time.Minute),
	}
}

func TestAggregateProgress(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    Summary
	}{
		{"empty", nil, Summary{}},
		{"single", []Result{result("u1", "a1", 80, 10, 0, false)},
			Summary{CompletionRate: 1, AverageScore: 80, TotalPoints: 8, CompletedCount: 1, TotalActivities: 1}},
		{"abandoned counts toward total only", []Result{
			result("u1", "a1", 100, 10, 0, false),
			result("u1", "a2", 0, 10, 0, true),
		}, Summary{CompletionRate: 0.5, AverageScore: 100, TotalPoints: 10, CompletedCount: 1, TotalActivities: 2}},
		{"later attempt supersedes", []Result{
			result("u1", "a1", 90, 10, 5, false),
			result("u1", "a1", 40, 10, 1, false),
			result("u1", "a1", 60, 10, 3, false),
		}, Summary{CompletionRate: 1, AverageScore: 90, TotalPoints: 9, CompletedCount: 1, TotalActivities: 1}},
		{"retry after abandon", []Result{
			result("u1", "a1", 0, 20, 0, true),
			result("u1", "a1", 50, 20, 1, false),
		}, Summary{CompletionRate: 1, AverageScore: 50, TotalPoints: 10, CompletedCount: 1, TotalActivities: 1}},
		{"rounded average", []Result{
			result("u1", "a1", 100, 3, 0, false),
			result("u1", "a2", 67, 3, 0, false),
			result("u1", "a3", 33, 3, 0, false),
		}, Summary{CompletionRate: 1, AverageScore: 66.67, TotalPoints: 6, CompletedCount: 3, TotalActivities: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateProgress(tt.results); got != tt.want {
				t.Fatalf("AggregateProgress = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScopeAggregate(t *testing.T) {
	results := []Result{
		result("u1", "a1", 100, 10, 0, false),
		result("u1", "a2", 50, 10, 0, false),
		result("u2", "a1", 80, 10, 0, false),
		result("u3", "a1", 70, 10, 0, false),
		result("u1", "other", 100, 10, 0, false),
	}
	tests := []struct {
		name  string
		scope Scope
		want  Summary
	}{
		{"lesson over seen learners", Scope{ActivityIDs: []string{"a1", "a2"}},
			Summary{CompletionRate: 0.67, AverageScore: 75, TotalPoints: 30, CompletedCount: 4, TotalActivities: 6}},
		{"class roster", Scope{ActivityIDs: []string{"a1", "a2"}, LearnerIDs: []string{"u1", "u2", "u4"}},
			Summary{CompletionRate: 0.5, AverageScore: 76.67, TotalPoints: 23, CompletedCount: 3, TotalActivities: 6}},
		{"empty scope behaves like AggregateProgress", Scope{},
			AggregateProgress(results)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Aggregate(results); got != tt.want {
				t.Fatalf("Aggregate = %+v, want %+v", got, tt.want)
			}
		})
	}
}
