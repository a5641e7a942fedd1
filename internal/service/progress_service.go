package service

import (
	"activity_engine/internal/engine"
	"activity_engine/internal/model"
	"activity_engine/internal/repository"
	"sort"
)

// LearnerProgress 班级进度中单个学员的汇总
type LearnerProgress struct {
	LearnerID string `json:"learnerId"`
	engine.Summary
}

type ClassProgress struct {
	ClassID  string            `json:"classId"`
	Overall  engine.Summary    `json:"overall"`
	Learners []LearnerProgress `json:"learners"`
}

type ProgressService struct {
	ActivityRepo *repository.ActivityRepository
	ResultRepo   *repository.AttemptResultRepository
}

func NewProgressService(activityRepo *repository.ActivityRepository, resultRepo *repository.AttemptResultRepository) *ProgressService {
	return &ProgressService{ActivityRepo: activityRepo, ResultRepo: resultRepo}
}

// LessonProgress 学员在一节课上的完成情况，未作答的活动也计入总数
func (s *ProgressService) LessonProgress(lessonID, learnerID string) (engine.Summary, error) {
	activities, err := s.ActivityRepo.ListByLesson(lessonID)
	if err != nil {
		return engine.Summary{}, err
	}
	rows, err := s.ResultRepo.ListByLesson(lessonID, learnerID)
	if err != nil {
		return engine.Summary{}, err
	}
	scope := engine.Scope{ActivityIDs: activityIDs(activities)}
	if learnerID != "" {
		scope.LearnerIDs = []string{learnerID}
	}
	return scope.Aggregate(model.ToResults(rows)), nil
}

// ClassProgress learnerIDs 为空时以有提交记录的学员为准
func (s *ProgressService) ClassProgress(classID string, learnerIDs []string) (*ClassProgress, error) {
	activities, err := s.ActivityRepo.ListByClass(classID)
	if err != nil {
		return nil, err
	}
	rows, err := s.ResultRepo.ListByClass(classID)
	if err != nil {
		return nil, err
	}
	results := model.ToResults(rows)
	ids := activityIDs(activities)

	roster := learnerIDs
	if len(roster) == 0 {
		seen := map[string]bool{}
		for _, r := range results {
			if !seen[r.LearnerID] {
				seen[r.LearnerID] = true
				roster = append(roster, r.LearnerID)
			}
		}
		sort.Strings(roster)
	}

	out := &ClassProgress{
		ClassID:  classID,
		Overall:  engine.Scope{ActivityIDs: ids, LearnerIDs: roster}.Aggregate(results),
		Learners: make([]LearnerProgress, 0, len(roster)),
	}
	for _, l := range roster {
		out.Learners = append(out.Learners, LearnerProgress{
			LearnerID: l,
			Summary:   engine.Scope{ActivityIDs: ids, LearnerIDs: []string{l}}.Aggregate(results),
		})
	}
	return out, nil
}

func (s *ProgressService) LearnerHistory(learnerID string, page, limit int) ([]engine.Result, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, total, err := s.ResultRepo.ListByLearner(learnerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return model.ToResults(rows), total, nil
}

func activityIDs(list []model.Activity) []string {
	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	return ids
}
