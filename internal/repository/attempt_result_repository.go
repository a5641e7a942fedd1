package repository

import (
	"activity_engine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptResultRepository struct {
	DB *gorm.DB
}

func NewAttemptResultRepository(db *gorm.DB) *AttemptResultRepository {
	return &AttemptResultRepository{DB: db}
}

// Create 以 session_id 去重，重复写入同一会话的结果不会报错
func (r *AttemptResultRepository) Create(res *model.AttemptResult) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(res).Error
}

func (r *AttemptResultRepository) FindBySession(sessionID string) (*model.AttemptResult, error) {
	var res model.AttemptResult
	if err := r.DB.Where("session_id = ?", sessionID).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByLesson 按完成时间升序返回；learnerID 为空时返回全部学员
func (r *AttemptResultRepository) ListByLesson(lessonID, learnerID string) ([]model.AttemptResult, error) {
	q := r.DB.Where("lesson_id = ?", lessonID)
	if learnerID != "" {
		q = q.Where("learner_id = ?", learnerID)
	}
	var list []model.AttemptResult
	err := q.Order("completed_at ASC").Find(&list).Error
	return list, err
}

func (r *AttemptResultRepository) ListByClass(classID string) ([]model.AttemptResult, error) {
	var list []model.AttemptResult
	err := r.DB.Where("class_id = ?", classID).Order("completed_at ASC").Find(&list).Error
	return list, err
}

func (r *AttemptResultRepository) ListByLearner(learnerID string, page, limit int) ([]model.AttemptResult, int64, error) {
	var list []model.AttemptResult
	var total int64
	q := r.DB.Model(&model.AttemptResult{}).Where("learner_id = ?", learnerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("completed_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&list).Error
	return list, total, err
}
