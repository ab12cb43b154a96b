package chatbot

import (
	"context"
	"errors"

	"chatbot_server/internal/dto/request"
	"chatbot_server/pkg/zlog"

	"go.uber.org/zap"
)

var ErrNoResponder = errors.New("no responder configured")

// Chain 依次尝试各个 Responder，返回第一个成功的回答
type Chain []Responder

func (c Chain) Respond(ctx context.Context, req request.ChatRequest) (Reply, error) {
	var lastErr error
	for i, responder := range c {
		reply, err := responder.Respond(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		zlog.Warn("responder 调用失败，尝试下一个", zap.Int("index", i), zap.Error(err))
	}
	if lastErr == nil {
		lastErr = ErrNoResponder
	}
	return Reply{}, lastErr
}
