package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/dto/respond"
	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler 处理一条对话请求并给出响应，与 HTTP 接口共用
type Handler func(ctx context.Context, req request.ChatRequest) respond.ChatRespond

// Client 表示一个通过 websocket 对话的客户端
type Client struct {
	Conn     *websocket.Conn // WebSocket连接对象
	UserId   string          // 连接时携带的用户标识，帧内未提供 user_id 时使用
	SendBack chan []byte     // 发送回客户端的消息通道
	handle   Handler

	// writeWait 单次写入的超时时间，客户端不读数据时写协程不会一直阻塞
	writeWait time.Duration
}

// upgrader 用于将HTTP连接升级为WebSocket连接
var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 允许所有来源，跨域由 CORS 中间件控制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewClientInit 升级连接并启动读写协程，连接期间登记在 ChatServer 中，断开前阻塞
func (s *ChatServer) NewClientInit(c *gin.Context, userId string, handle Handler) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error("ws upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		Conn:     conn,
		UserId:   userId,
		SendBack: make(chan []byte, constants.CHANNEL_SIZE),
		handle:   handle,

		writeWait: s.WriteWait,
	}
	if !s.login(client) {
		client.goingAway()
		return
	}
	defer s.logout(client)
	zlog.Info("ws连接成功", zap.String("user_id", userId))

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Write()
	}()
	client.Read(c.Request.Context())
	<-done

	if err := conn.Close(); err != nil {
		zlog.Debug("ws close", zap.Error(err))
	}
	zlog.Info("ws连接断开", zap.String("user_id", userId))
}

// Read 从WebSocket读取客户端消息并处理，读取出错时关闭 SendBack 结束写协程
func (c *Client) Read(ctx context.Context) {
	defer close(c.SendBack)
	for {
		_, jsonMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Error("ws read failed", zap.Error(err))
			}
			return
		}

		var rsp respond.ChatRespond
		var message request.ChatRequest
		if err := json.Unmarshal(jsonMessage, &message); err != nil {
			rsp = respond.ChatRespond{Success: false, Error: constants.NO_JSON_DATA}
		} else {
			if message.UserId == "" {
				message.UserId = c.UserId
			}
			rsp = c.handle(ctx, message)
		}

		payload, err := json.Marshal(rsp)
		if err != nil {
			zlog.Error(err.Error())
			continue
		}
		// 同一连接只允许一个写协程，这里只投递到 SendBack
		select {
		case c.SendBack <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// Write 从SendBack通道读取消息并发送给WebSocket客户端
func (c *Client) Write() {
	broken := false
	for message := range c.SendBack {
		if broken {
			// 连接已坏，继续消费直到 Read 关闭通道，避免 Read 阻塞
			continue
		}
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			zlog.Error("ws write failed", zap.String("user_id", c.UserId), zap.Error(err))
			broken = true
			// 关闭连接让 Read 退出
			_ = c.Conn.Close()
		}
	}
}

// goingAway 发送 going away 关闭帧后断开连接
func (c *Client) goingAway() {
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	if err := c.Conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.writeWait)); err != nil {
		zlog.Debug("ws close frame", zap.String("user_id", c.UserId), zap.Error(err))
	}
	_ = c.Conn.Close()
}
