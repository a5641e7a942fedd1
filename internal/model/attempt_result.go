package model

import (
	"activity_engine/internal/engine"
	"activity_engine/pkg/logger"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// AttemptResult 每个完成的会话对应一条记录
// swagger:model AttemptResult
type AttemptResult struct {
	BaseModel

	SessionID        string    `gorm:"uniqueIndex;type:varchar(36)" json:"sessionId"`
	LearnerID        string    `gorm:"index;type:varchar(64)" json:"learnerId"`
	ActivityID       string    `gorm:"index;type:varchar(64)" json:"activityId"`
	LessonID         string    `gorm:"index;type:varchar(64)" json:"lessonId"`
	ClassID          string    `gorm:"index;type:varchar(64)" json:"classId"`
	Kind             string    `gorm:"type:varchar(20)" json:"kind"`
	Score            int       `json:"score"`
	CorrectCount     *int      `json:"correctCount,omitempty"`
	TotalCount       *int      `json:"totalCount,omitempty"`
	Points           int       `json:"points"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	Expired          bool      `gorm:"default:false" json:"expired"`
	Abandoned        bool      `gorm:"default:false" json:"abandoned"`
	Mistakes         int       `json:"mistakes"`
	Artifact         string    `gorm:"type:varchar(512)" json:"artifact,omitempty"`
	Items            string    `gorm:"type:text" json:"-"`
	CompletedAt      time.Time `gorm:"index" json:"completedAt"`
}

func (AttemptResult) TableName() string {
	return "attempt_results"
}

func NewAttemptResult(res engine.Result, lessonID, classID string) *AttemptResult {
	items, err := json.Marshal(res.Items)
	if err != nil {
		logger.Log.Error("Failed to encode result items", zap.String("sessionId", res.SessionID), zap.Error(err))
		items = nil
	}
	return &AttemptResult{
		SessionID:        res.SessionID,
		LearnerID:        res.LearnerID,
		ActivityID:       res.ActivityID,
		LessonID:         lessonID,
		ClassID:          classID,
		Kind:             string(res.Kind),
		Score:            res.Score,
		CorrectCount:     res.CorrectCount,
		TotalCount:       res.TotalCount,
		Points:           res.Points,
		TimeSpentSeconds: res.TimeSpentSeconds,
		Expired:          res.Expired,
		Abandoned:        res.Abandoned,
		Mistakes:         res.Mistakes,
		Artifact:         res.Artifact,
		Items:            string(items),
		CompletedAt:      res.CompletedAt,
	}
}

func (r *AttemptResult) ToResult() engine.Result {
	res := engine.Result{
		SessionID:        r.SessionID,
		ActivityID:       r.ActivityID,
		LearnerID:        r.LearnerID,
		Kind:             engine.Kind(r.Kind),
		Score:            r.Score,
		CorrectCount:     r.CorrectCount,
		TotalCount:       r.TotalCount,
		TimeSpentSeconds: r.TimeSpentSeconds,
		Points:           r.Points,
		Expired:          r.Expired,
		Abandoned:        r.Abandoned,
		Mistakes:         r.Mistakes,
		Artifact:         r.Artifact,
		CompletedAt:      r.CompletedAt,
	}
	if r.Items != "" {
		if err := json.Unmarshal([]byte(r.Items), &res.Items); err != nil {
			logger.Log.Warn("Stored result items unreadable",
				zap.String("sessionId", r.SessionID), zap.Error(err))
			res.Items = nil
		}
	}
	return res
}

func ToResults(rows []AttemptResult) []engine.Result {
	out := make([]engine.Result, len(rows))
	for i := range rows {
		out[i] = rows[i].ToResult()
	}
	return out
}
