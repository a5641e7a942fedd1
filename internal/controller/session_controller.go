package controller

import (
	"activity_engine/internal/engine"
	"activity_engine/internal/service"
	"activity_engine/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SessionController 处理活动会话相关的 HTTP 请求
type SessionController struct {
	Sessions   *service.SessionService
	Recordings *service.RecordingService
	Hub        *service.SessionHub
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	ActivityID string `json:"activityId" binding:"required" example:"quiz-colours-1"`
}

// AnswerRequest 作答请求；选择题传选项下标，填空传文本，连线传右侧条目 ID
type AnswerRequest struct {
	Value interface{} `json:"value"`
}

// AnswerResponse 连线答错时 accepted 为 false，会话不受影响
type AnswerResponse struct {
	Accepted bool            `json:"accepted"`
	Session  engine.Snapshot `json:"session"`
}

func NewSessionController(sessions *service.SessionService, recordings *service.RecordingService, hub *service.SessionHub) *SessionController {
	return &SessionController{Sessions: sessions, Recordings: recordings, Hub: hub}
}

// respondError 将领域错误映射为 HTTP 状态码
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound), errors.Is(err, util.ErrActivityNotFound):
		util.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrSessionForbidden):
		util.Forbidden(c)
	case errors.Is(err, engine.ErrInvalidTransition):
		util.Conflict(c, err.Error())
	case errors.Is(err, engine.ErrInvalidAnswer), errors.Is(err, engine.ErrInvalidDefinition), errors.Is(err, engine.ErrMatchRejected):
		util.UnprocessableEntity(c, err.Error())
	case errors.Is(err, util.ErrRecordingTooLarge):
		util.Error(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, util.ErrUnsupportedMedia):
		util.Error(c, http.StatusUnsupportedMediaType, err.Error())
	default:
		util.LogInternalError(c, err)
	}
}

func learnerID(c *gin.Context) (string, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return "", false
	}
	return claims.LearnerID, true
}

func (ctrl *SessionController) snapshotOp(c *gin.Context, op func(learnerID, sessionID string) (engine.Snapshot, error)) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	snap, err := op(uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, snap)
}

// CreateSession godoc
// @Summary 创建会话
// @Description 为当前学员创建一个活动会话，状态为 not_started
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateSessionRequest true "活动 ID"
// @Success 201 {object} util.Response{data=engine.Snapshot}
// @Failure 404 {object} util.Response "活动不存在"
// @Failure 422 {object} util.Response "活动定义无效"
// @Router /api/sessions [post]
func (ctrl *SessionController) CreateSession(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	snap, err := ctrl.Sessions.Create(uid, req.ActivityID)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, snap)
}

// GetSession godoc
// @Summary 会话快照
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Success 200 {object} util.Response{data=engine.Snapshot}
// @Router /api/sessions/{id} [get]
func (ctrl *SessionController) GetSession(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Snapshot)
}

// Start godoc
// @Summary 开始会话
// @Tags 会话
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Success 200 {object} util.Response{data=engine.Snapshot}
// @Failure 409 {object} util.Response "状态不允许"
// @Router /api/sessions/{id}/start [post]
func (ctrl *SessionController) Start(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Start)
}

// @Summary 暂停会话
// @Tags 会话
// @Router /api/sessions/{id}/pause [post]
func (ctrl *SessionController) Pause(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Pause)
}

// @Summary 继续会话
// @Tags 会话
// @Router /api/sessions/{id}/resume [post]
func (ctrl *SessionController) Resume(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Resume)
}

// @Summary 下一步
// @Tags 会话
// @Router /api/sessions/{id}/advance [post]
func (ctrl *SessionController) Advance(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Advance)
}

// @Summary 上一步
// @Tags 会话
// @Router /api/sessions/{id}/retreat [post]
func (ctrl *SessionController) Retreat(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Retreat)
}

// Consumed godoc
// @Summary 标记听力/阅读材料已读完
// @Tags 会话
// @Router /api/sessions/{id}/consumed [post]
func (ctrl *SessionController) Consumed(c *gin.Context) {
	ctrl.snapshotOp(c, ctrl.Sessions.Consumed)
}

// Answer godoc
// @Summary 作答
// @Description 记录某一题的答案，重复作答会覆盖之前的答案
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Param itemId path string true "题目 ID"
// @Param request body AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=AnswerResponse}
// @Failure 422 {object} util.Response "答案格式错误"
// @Router /api/sessions/{id}/answers/{itemId} [put]
func (ctrl *SessionController) Answer(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	snap, err := ctrl.Sessions.Answer(uid, id, c.Param("itemId"), req.Value)
	switch {
	case err == nil:
		util.Success(c, AnswerResponse{Accepted: true, Session: snap})
	case errors.Is(err, engine.ErrMatchRejected):
		snap, err = ctrl.Sessions.Snapshot(uid, id)
		if err != nil {
			respondError(c, err)
			return
		}
		util.Success(c, AnswerResponse{Accepted: false, Session: snap})
	default:
		respondError(c, err)
	}
}

// SubmitStep godoc
// @Summary 提交当前步骤并前进
// @Tags 会话
// @Accept json
// @Param id path string true "会话 ID"
// @Param request body AnswerRequest false "当前步骤的答案"
// @Router /api/sessions/{id}/step [post]
func (ctrl *SessionController) SubmitStep(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	var req AnswerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.BadRequest(c, err.Error())
			return
		}
	}
	snap, err := ctrl.Sessions.SubmitStep(uid, c.Param("id"), req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, snap)
}

// Submit godoc
// @Summary 提交会话
// @Description 评分并结束会话；重复提交返回同一结果
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Success 200 {object} util.Response{data=engine.Result}
// @Router /api/sessions/{id}/submit [post]
func (ctrl *SessionController) Submit(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	res, err := ctrl.Sessions.Submit(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, res)
}

// Abandon godoc
// @Summary 放弃会话
// @Tags 会话
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Success 200 {object} util.Response{data=engine.Result}
// @Router /api/sessions/{id}/abandon [post]
func (ctrl *SessionController) Abandon(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	res, err := ctrl.Sessions.Abandon(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, res)
}

// GetResult godoc
// @Summary 会话结果
// @Tags 会话
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Success 200 {object} util.Response{data=engine.Result}
// @Failure 409 {object} util.Response "会话尚未结束"
// @Router /api/sessions/{id}/result [get]
func (ctrl *SessionController) GetResult(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	res, err := ctrl.Sessions.Result(uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, res)
}

// UploadRecording godoc
// @Summary 上传口语录音
// @Tags 会话
// @Accept multipart/form-data
// @Security ApiKeyAuth
// @Param id path string true "会话 ID"
// @Param file formData file true "录音文件"
// @Param duration formData number false "客户端测得的时长（秒）"
// @Success 200 {object} util.Response{data=engine.Snapshot}
// @Failure 413 {object} util.Response "文件过大"
// @Failure 415 {object} util.Response "格式不支持"
// @Router /api/sessions/{id}/recording [post]
func (ctrl *SessionController) UploadRecording(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		util.BadRequest(c, "file is required")
		return
	}
	var declared float64
	if d := c.PostForm("duration"); d != "" {
		declared, err = strconv.ParseFloat(d, 64)
		if err != nil || declared < 0 {
			util.BadRequest(c, "invalid duration")
			return
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	defer f.Close()

	snap, err := ctrl.Recordings.Upload(c.Request.Context(), uid, c.Param("id"), service.RecordingUpload{
		Filename:        fileHeader.Filename,
		Size:            fileHeader.Size,
		Body:            f,
		DeclaredSeconds: declared,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, snap)
}

// HandleWS godoc
// @Summary 会话实时推送
// @Description 建立 WebSocket 连接，接收 TICK、EXPIRED、COMPLETED 消息
// @Tags 会话
// @Param id path string true "会话 ID"
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /api/sessions/{id}/ws [get]
func (ctrl *SessionController) HandleWS(c *gin.Context) {
	uid, ok := learnerID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	snap, err := ctrl.Sessions.Snapshot(uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	service.ServeWs(ctrl.Hub, c.Writer, c.Request, id, service.WSMessage{Type: service.MsgSnapshot, Data: snap}, snap.Status == engine.Completed)
}
