package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	v1 "chatbot_server/api/v1"
	"chatbot_server/internal/config"
	"chatbot_server/internal/dao"
	"chatbot_server/internal/https_server"
	"chatbot_server/internal/service/ai"
	"chatbot_server/internal/service/auth"
	"chatbot_server/internal/service/chat"
	"chatbot_server/internal/service/chatbot"
	"chatbot_server/internal/service/gorm"
	"chatbot_server/internal/service/knowledge"
	myredis "chatbot_server/internal/service/redis"
	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/ssl"
	"chatbot_server/pkg/zlog"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	issueToken := flag.String("issue-token", "", "print an admin token for POST /api/train issued to the given user and exit")
	flag.Parse()

	if *issueToken != "" {
		if err := printToken(*configPath, *issueToken); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := run(*configPath); err != nil {
		zlog.Error("服务器异常退出", zap.Error(err))
		zlog.Sync()
		log.Fatal(err)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	return config.LoadConfig(paths...)
}

func printToken(configPath, userId string) error {
	conf, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenService(conf.SecurityConfig.TrainSecret, conf.SecurityConfig.TokenTtl)
	if !tokens.Enabled() {
		return errors.New("securityConfig.trainSecret is empty, /api/train is not protected")
	}
	token, err := tokens.GenerateToken(userId, []string{auth.RoleAdmin})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(configPath string) error {
	conf, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := zlog.Init(zlog.Options{
		LogPath:    conf.LogConfig.LogPath,
		Level:      conf.LogConfig.Level,
		MaxSize:    conf.LogConfig.MaxSize,
		MaxBackups: conf.LogConfig.MaxBackups,
		MaxAge:     conf.LogConfig.MaxAge,
		Console:    !conf.IsProduction(),
	}); err != nil {
		return err
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := knowledge.NewStore(conf.ChatbotConfig.DataFile)
	if err := store.LoadOrSeed(conf.ChatbotConfig.DefaultDataFile); err != nil {
		return err
	}
	if err := store.Validate(); err != nil {
		zlog.Warn("知识库存在问题", zap.Error(err))
	}

	local := chatbot.NewChatbotService(store, chatbot.Options{Threshold: conf.ChatbotConfig.ConfidenceThreshold})
	var responder chatbot.Responder = local
	if upstream := ai.NewUpstreamService(conf.UpstreamConfig); upstream.Enabled() {
		zlog.Info("已启用上游 chatbot", zap.String("base_url", conf.UpstreamConfig.BaseUrl))
		responder = chatbot.Chain{upstream, local}
	}

	chatServer := chat.NewChatServer()
	opts := v1.Options{
		Responder:          responder,
		Store:              store,
		ChatServer:         chatServer,
		DefaultApplication: conf.ChatbotConfig.DefaultApplication,
		MaxMessageLength:   conf.ChatbotConfig.MaxMessageLength,
	}
	if conf.MysqlConfig.Enable {
		db, err := dao.NewGormDB(conf.MysqlConfig)
		if err != nil {
			return err
		}
		opts.Recorder = gorm.NewChatRecordService(db)
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
	}
	if conf.RedisConfig.Enable {
		client := myredis.NewRedisClient(conf.RedisConfig)
		defer client.Close()
		if err := myredis.Ping(ctx, client); err != nil {
			return err
		}
		opts.Limiter = myredis.NewFixedWindowLimiter(client, conf.SecurityConfig.RateLimitPerMinute, constants.RATE_LIMIT_WINDOW)
	}

	srv := &http.Server{
		Addr:              conf.Addr(),
		Handler:           https_server.NewEngine(conf, v1.NewController(opts)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown 不等待被劫持的 websocket 连接，由 ChatServer 主动断开
	srv.RegisterOnShutdown(chatServer.Close)

	errCh := make(chan error, 1)
	go func() {
		certFile, keyFile := conf.SecurityConfig.CertFile, conf.SecurityConfig.KeyFile
		if ssl.Enabled(certFile, keyFile) {
			zlog.Info("HTTPS 服务启动", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServeTLS(certFile, keyFile)
			return
		}
		zlog.Info("HTTP 服务启动", zap.String("addr", srv.Addr), zap.String("env", conf.MainConfig.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	zlog.Info("关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	zlog.Info("服务器已关闭")
	return nil
}
