package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/dto/respond"
	"chatbot_server/internal/model"
	"chatbot_server/internal/service/chat"
	"chatbot_server/internal/service/chatbot"
	"chatbot_server/internal/service/gorm"
	"chatbot_server/internal/service/knowledge"
	myredis "chatbot_server/internal/service/redis"
	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/zlog"

	"go.uber.org/zap"
)

// Controller 汇总接口依赖，HTTP 与 websocket 共用同一套处理逻辑
type Controller struct {
	responder chatbot.Responder
	store     *knowledge.Store
	recorder  gorm.ChatRecorder
	limiter   myredis.RateLimiter

	// chatServer 登记 websocket 连接，关停时由 main 统一关闭
	chatServer *chat.ChatServer

	defaultApplication string
	maxMessageLength   int
	now                func() time.Time
}

type Options struct {
	Responder chatbot.Responder
	Store     *knowledge.Store
	// Recorder 与 Limiter 为空时分别使用不落库、不限流的实现
	Recorder gorm.ChatRecorder
	Limiter  myredis.RateLimiter

	// ChatServer 为空时新建一个
	ChatServer *chat.ChatServer

	DefaultApplication string
	MaxMessageLength   int
	Now                func() time.Time
}

func NewController(opts Options) *Controller {
	if opts.Recorder == nil {
		opts.Recorder = gorm.NopRecorder{}
	}
	if opts.Limiter == nil {
		opts.Limiter = myredis.NopLimiter{}
	}
	if opts.ChatServer == nil {
		opts.ChatServer = chat.NewChatServer()
	}
	if opts.DefaultApplication == "" {
		opts.DefaultApplication = constants.DEFAULT_APPLICATION
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = constants.MAX_MESSAGE_LENGTH
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		responder:          opts.Responder,
		store:              opts.Store,
		recorder:           opts.Recorder,
		limiter:            opts.Limiter,
		chatServer:         opts.ChatServer,
		defaultApplication: opts.DefaultApplication,
		maxMessageLength:   opts.MaxMessageLength,
		now:                opts.Now,
	}
}

// answer 校验请求、限流、调用 responder 并记录，返回 HTTP 状态码与响应体
func (ctl *Controller) answer(ctx context.Context, req request.ChatRequest) (int, respond.ChatRespond) {
	if strings.TrimSpace(req.UserId) == "" {
		req.UserId = constants.DEFAULT_USER_ID
	}
	if strings.TrimSpace(req.Application) == "" {
		req.Application = ctl.defaultApplication
	}
	if strings.TrimSpace(req.Message) == "" {
		return http.StatusBadRequest, respond.ChatRespond{Success: false, Error: constants.NO_MESSAGE}
	}
	if utf8.RuneCountInString(req.Message) > ctl.maxMessageLength {
		return http.StatusBadRequest, respond.ChatRespond{Success: false, Error: constants.MESSAGE_TOO_LONG}
	}

	if err := ctl.limiter.Allow(ctx, req.UserId); err != nil {
		if errors.Is(err, myredis.ErrRateLimited) {
			zlog.Warn("请求过于频繁", zap.String("user_id", req.UserId))
			return http.StatusTooManyRequests, respond.ChatRespond{Success: false, Error: constants.RATE_LIMITED}
		}
		// 限流组件不可用时放行
		zlog.Error("限流检查失败", zap.Error(err))
	}

	reply, err := ctl.responder.Respond(ctx, req)
	if err != nil {
		zlog.Error("生成回复失败", zap.String("user_id", req.UserId), zap.String("application", req.Application), zap.Error(err))
		return http.StatusInternalServerError, respond.ChatRespond{
			Success:     false,
			Response:    constants.SYSTEM_ERROR,
			Application: req.Application,
			Error:       "Internal server error",
		}
	}

	record := &model.ChatRecord{
		UserId:      req.UserId,
		Application: reply.Application,
		Message:     req.Message,
		Response:    reply.Response,
		Intent:      reply.Intent,
		Confidence:  reply.Confidence,
		Source:      reply.Source,
	}
	if err := ctl.recorder.Record(ctx, record); err != nil {
		zlog.Error("对话记录写入失败", zap.Error(err))
	}

	return http.StatusOK, respond.ChatRespond{
		Success:     true,
		Response:    reply.Response,
		Confidence:  reply.Confidence,
		Application: reply.Application,
		Intent:      reply.Intent,
	}
}
