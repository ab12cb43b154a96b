package v1

import (
	"context"

	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/dto/respond"
	"chatbot_server/pkg/constants"

	"github.com/gin-gonic/gin"
)

// WsChat websocket 对话，每一帧与 POST /api/chat 的请求体相同
func (ctl *Controller) WsChat(c *gin.Context) {
	userId := c.Query("user_id")
	if userId == "" {
		userId = constants.DEFAULT_USER_ID
	}
	ctl.chatServer.NewClientInit(c, userId, func(ctx context.Context, req request.ChatRequest) respond.ChatRespond {
		_, rsp := ctl.answer(ctx, req)
		return rsp
	})
}
