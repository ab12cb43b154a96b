package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/dto/respond"
	"chatbot_server/internal/model"
	"chatbot_server/internal/service/knowledge"
	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const historyLimitMax = 100

// Chat 对话接口
func (ctl *Controller) Chat(c *gin.Context) {
	var req request.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Debug("chat 请求体解析失败", zap.Error(err))
		c.JSON(http.StatusBadRequest, respond.ChatRespond{Success: false, Error: constants.NO_JSON_DATA})
		return
	}
	status, rsp := ctl.answer(c.Request.Context(), req)
	c.JSON(status, rsp)
}

// Train 为场景追加一条关键词与回复
func (ctl *Controller) Train(c *gin.Context) {
	var req request.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Debug("train 请求体解析失败", zap.Error(err))
		c.JSON(http.StatusBadRequest, respond.TrainRespond{Success: false, Message: constants.TRAINING_FAILED})
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		req.Tag = constants.DEFAULT_TAG
	}

	if err := ctl.store.AddExample(req.Application, req.Pattern, req.Response, req.Tag); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, knowledge.ErrInvalidExample) {
			status = http.StatusBadRequest
		} else {
			zlog.Error("新增训练样本失败", zap.Error(err))
		}
		c.JSON(status, respond.TrainRespond{Success: false, Message: constants.TRAINING_FAILED})
		return
	}
	c.JSON(http.StatusOK, respond.TrainRespond{Success: true, Message: constants.TRAINING_SUCCEEDED})
}

// Applications 列出所有场景
func (ctl *Controller) Applications(c *gin.Context) {
	c.JSON(http.StatusOK, respond.ApplicationsRespond{Applications: ctl.store.Applications()})
}

// Stats 知识库统计
func (ctl *Controller) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.store.Stats())
}

// Health 健康检查
func (ctl *Controller) Health(c *gin.Context) {
	c.JSON(http.StatusOK, respond.HealthRespond{
		Status:    "healthy",
		Service:   "chatbot",
		Version:   constants.APP_VERSION,
		Timestamp: ctl.now().UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// History 用户最近的对话记录，?limit= 默认 20
func (ctl *Controller) History(c *gin.Context) {
	userId := c.Param("user_id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, historyLimitMax)
	}

	records, err := ctl.recorder.ListByUser(c.Request.Context(), userId, limit)
	if err != nil {
		zlog.Error("查询对话记录失败", zap.String("user_id", userId), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.SYSTEM_ERROR})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userId,
		"history": lo.Map(records, func(r model.ChatRecord, _ int) respond.ChatRecordRespond {
			return respond.ChatRecordRespond{
				Uuid:        r.Uuid,
				Application: r.Application,
				Message:     r.Message,
				Response:    r.Response,
				Intent:      r.Intent,
				Confidence:  r.Confidence,
				CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
			}
		}),
	})
}
