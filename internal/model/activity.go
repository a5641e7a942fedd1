package model

import (
	"activity_engine/internal/engine"
	"encoding/json"
	"fmt"
	"time"
)

// Activity 保存作者编写的练习定义，Definition 为 engine.RawActivity 的 JSON
// swagger:model Activity
type Activity struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	LessonID   string    `gorm:"index;type:varchar(64)" json:"lessonId"`
	ClassID    string    `gorm:"index;type:varchar(64)" json:"classId"`
	Position   int       `json:"position"`
	Type       string    `gorm:"type:varchar(20)" json:"type"`
	Title      string    `gorm:"type:varchar(255)" json:"title"`
	Points     int       `json:"points"`
	Definition string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Activity) TableName() string {
	return "activities"
}

func NewActivity(lessonID, classID string, position int, raw engine.RawActivity) (*Activity, error) {
	def, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode activity %s: %w", raw.ID, err)
	}
	return &Activity{
		ID:         raw.ID,
		LessonID:   lessonID,
		ClassID:    classID,
		Position:   position,
		Type:       raw.Type,
		Title:      raw.Title,
		Points:     raw.Points,
		Definition: string(def),
	}, nil
}

func (a *Activity) Raw() (engine.RawActivity, error) {
	var raw engine.RawActivity
	if err := json.Unmarshal([]byte(a.Definition), &raw); err != nil {
		return raw, fmt.Errorf("decode activity %s: %w", a.ID, err)
	}
	return raw, nil
}

// Parse 解析并校验存储的定义
func (a *Activity) Parse() (*engine.Activity, error) {
	raw, err := a.Raw()
	if err != nil {
		return nil, err
	}
	return engine.ParseActivity(raw)
}
