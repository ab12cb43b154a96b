package chat

import (
	"sync"
	"time"

	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/zlog"

	"go.uber.org/zap"
)

// ChatServer 记录在线的 websocket 客户端，关停时统一断开
type ChatServer struct {
	mutex   sync.Mutex
	Clients map[*Client]struct{}
	closed  bool

	// WriteWait 单次写入超时，包括关闭帧
	WriteWait time.Duration
}

func NewChatServer() *ChatServer {
	return &ChatServer{
		Clients:   make(map[*Client]struct{}),
		WriteWait: constants.WS_WRITE_WAIT,
	}
}

func (s *ChatServer) login(client *Client) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	s.Clients[client] = struct{}{}
	return true
}

func (s *ChatServer) logout(client *Client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.Clients, client)
}

// Len 当前在线连接数
func (s *ChatServer) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.Clients)
}

// Close 向所有客户端发送 going away 并关闭连接，之后的新连接直接拒绝。
// http.Server.Shutdown 不会处理已被劫持的 websocket 连接，需要注册到 RegisterOnShutdown
func (s *ChatServer) Close() {
	s.mutex.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.Clients))
	for client := range s.Clients {
		clients = append(clients, client)
	}
	s.mutex.Unlock()

	for _, client := range clients {
		// 关闭底层连接后 Read 立即返回，读写协程随之退出
		client.goingAway()
	}
	zlog.Info("ws连接已全部关闭", zap.Int("count", len(clients)))
}
