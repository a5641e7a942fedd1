package repository

import (
	"activity_engine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) FindByID(id string) (*model.Activity, error) {
	var a model.Activity
	if err := r.DB.Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActivityRepository) ListByLesson(lessonID string) ([]model.Activity, error) {
	var list []model.Activity
	err := r.DB.Where("lesson_id = ?", lessonID).Order("position ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *ActivityRepository) ListByClass(classID string) ([]model.Activity, error) {
	var list []model.Activity
	err := r.DB.Where("class_id = ?", classID).Order("lesson_id ASC, position ASC, id ASC").Find(&list).Error
	return list, err
}

// Upsert 导入时按 ID 覆盖已有定义
func (r *ActivityRepository) Upsert(a *model.Activity) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lesson_id", "class_id", "position", "type", "title", "points", "definition", "updated_at"}),
	}).Create(a).Error
}

func (r *ActivityRepository) Create(a *model.Activity) error {
	return r.DB.Create(a).Error
}
