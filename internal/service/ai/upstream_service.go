package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatbot_server/internal/config"
	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/dto/respond"
	"chatbot_server/internal/service/chatbot"
	"chatbot_server/pkg/zlog"

	"go.uber.org/zap"
)

var ErrUpstreamDisabled = errors.New("upstream chatbot is not configured")

// UpstreamService 将对话转发给外部 chatbot 后端（同样暴露 POST /api/chat）
type UpstreamService struct {
	httpClient *http.Client
	baseUrl    string
	apiKey     string
}

func NewUpstreamService(conf config.UpstreamConfig) *UpstreamService {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UpstreamService{
		httpClient: &http.Client{Timeout: timeout},
		baseUrl:    strings.TrimRight(conf.BaseUrl, "/"),
		apiKey:     conf.ApiKey,
	}
}

func (s *UpstreamService) Enabled() bool {
	return s.baseUrl != ""
}

// Respond 调用上游 /api/chat 获取回答
func (s *UpstreamService) Respond(ctx context.Context, chatReq request.ChatRequest) (chatbot.Reply, error) {
	if !s.Enabled() {
		return chatbot.Reply{}, ErrUpstreamDisabled
	}

	reqBody, err := json.Marshal(chatReq)
	if err != nil {
		return chatbot.Reply{}, err
	}

	apiUrl := s.baseUrl + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiUrl, bytes.NewReader(reqBody))
	if err != nil {
		return chatbot.Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	zlog.Debug("调用上游 chatbot", zap.String("url", apiUrl))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return chatbot.Reply{}, fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return chatbot.Reply{}, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		zlog.Error("上游返回错误状态码", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return chatbot.Reply{}, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var chatResp respond.ChatRespond
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return chatbot.Reply{}, fmt.Errorf("decode upstream response: %w", err)
	}
	if !chatResp.Success || chatResp.Response == "" {
		return chatbot.Reply{}, fmt.Errorf("upstream reported failure: %s", chatResp.Error)
	}

	application := chatResp.Application
	if application == "" {
		application = chatReq.Application
	}
	return chatbot.Reply{
		Response:    chatResp.Response,
		Confidence:  chatResp.Confidence,
		Application: application,
		Intent:      chatResp.Intent,
		Source:      chatbot.SourceUpstream,
	}, nil
}
