package https_server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	v1 "chatbot_server/api/v1"
	"chatbot_server/internal/config"
	"chatbot_server/internal/service/auth"
	"chatbot_server/pkg/ssl"
	"chatbot_server/pkg/zlog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const RequestIdHeader = "X-Request-Id"

// NewEngine 注册中间件与路由
func NewEngine(conf *config.Config, ctl *v1.Controller) *gin.Engine {
	if conf.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ge := gin.New()
	ge.Use(gin.Recovery(), RequestId(), AccessLog())
	if corsHandler, ok := corsMiddleware(conf.SecurityConfig.CorsOrigins); ok {
		ge.Use(corsHandler)
	}
	ge.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port, conf.SecurityConfig.CertFile, conf.SecurityConfig.KeyFile))

	api := ge.Group("/api")
	api.POST("/chat", ctl.Chat)
	tokens := auth.NewTokenService(conf.SecurityConfig.TrainSecret, conf.SecurityConfig.TokenTtl)
	if tokens.Enabled() {
		api.POST("/train", AdminAuth(tokens), ctl.Train)
	} else {
		api.POST("/train", ctl.Train)
	}
	api.GET("/applications", ctl.Applications)
	api.GET("/stats", ctl.Stats)
	api.GET("/health", ctl.Health)
	api.GET("/history/:user_id", ctl.History)
	ge.GET("/ws/chat", ctl.WsChat)
	return ge
}

// corsMiddleware 未配置任何来源时不启用跨域
func corsMiddleware(origins []string) (gin.HandlerFunc, bool) {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIdHeader},
		ExposeHeaders: []string{RequestIdHeader},
		MaxAge:        12 * time.Hour,
	}
	switch {
	case lo.Contains(origins, "*"):
		corsConfig.AllowAllOrigins = true
	case len(origins) > 0:
		corsConfig.AllowOrigins = origins
	default:
		return nil, false
	}
	return cors.New(corsConfig), true
}

// RequestId 透传或生成请求 id
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIdHeader, id)
		c.Next()
	}
}

// AccessLog 使用 zlog 记录访问日志
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			zlog.Error("request", fields...)
			return
		}
		zlog.Info("request", fields...)
	}
}

// AdminAuth 要求 Authorization: Bearer <token>，且 token 带 admin 角色
func AdminAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		claims, err := tokens.RequireRole(raw, auth.RoleAdmin)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrForbidden) {
				status = http.StatusForbidden
			}
			zlog.Warn("train 鉴权失败", zap.Error(err))
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		c.Set("user_id", claims.UserId)
		c.Next()
	}
}
