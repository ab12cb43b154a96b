package request

// ChatRequest POST /api/chat 以及 websocket 帧的请求体
type ChatRequest struct {
	Message     string `json:"message"`
	UserId      string `json:"user_id"`
	Application string `json:"application"`
}

// TrainRequest POST /api/train 请求体，tag 为空时归入 general
type TrainRequest struct {
	Application string `json:"application" binding:"required"`
	Pattern     string `json:"pattern" binding:"required"`
	Response    string `json:"response" binding:"required"`
	Tag         string `json:"tag"`
}
