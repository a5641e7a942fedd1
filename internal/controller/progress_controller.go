package controller

import (
	"activity_engine/internal/service"
	"activity_engine/internal/util"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Progress *service.ProgressService
}

func NewProgressController(progress *service.ProgressService) *ProgressController {
	return &ProgressController{Progress: progress}
}

// LessonProgress godoc
// @Summary 课时进度
// @Description 学员只能查看自己的进度；教师可通过 learnerId 查看指定学员，留空则汇总全部学员
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课时 ID"
// @Param learnerId query string false "学员 ID（教师）"
// @Success 200 {object} util.Response{data=engine.Summary}
// @Router /api/lessons/{id}/progress [get]
func (ctrl *ProgressController) LessonProgress(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	target := claims.LearnerID
	if claims.Role == util.RoleInstructor || claims.Role == util.RoleAdmin {
		target = c.Query("learnerId")
	}

	summary, err := ctrl.Progress.LessonProgress(c.Param("id"), target)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, summary)
}

// ClassProgress godoc
// @Summary 班级进度
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "班级 ID"
// @Param learners query string false "逗号分隔的学员名单"
// @Success 200 {object} util.Response{data=service.ClassProgress}
// @Router /api/classes/{id}/progress [get]
func (ctrl *ProgressController) ClassProgress(c *gin.Context) {
	var roster []string
	for _, id := range strings.Split(c.Query("learners"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			roster = append(roster, id)
		}
	}
	progress, err := ctrl.Progress.ClassProgress(c.Param("id"), roster)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, progress)
}

// MyResults godoc
// @Summary 我的作答记录
// @Tags 进度
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/learners/me/results [get]
func (ctrl *ProgressController) MyResults(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	list, total, err := ctrl.Progress.LearnerHistory(claims.LearnerID, page, limit)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	if page < 1 {
		page = 1
	}
	util.Success(c, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}
