package chatbot

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/service/knowledge"
	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/zlog"

	"go.uber.org/zap"
)

const (
	SourceLocal    = "local"
	SourceUpstream = "upstream"

	IntentFallback = "fallback"
	IntentEmpty    = "empty"

	emptyMessageReply   = "Please type a message so I can help you!"
	genericFallbackText = "How can I help you today?"
)

// Reply 一次对话的回答
type Reply struct {
	Response    string
	Confidence  float64
	Application string
	Intent      string
	Source      string
}

// Responder 能够回答 ChatRequest 的组件：本地关键词引擎或上游 chatbot 服务
type Responder interface {
	Respond(ctx context.Context, req request.ChatRequest) (Reply, error)
}

type Options struct {
	// Threshold 低于该匹配度时使用场景兜底回复
	Threshold float64
	Now       func() time.Time
	Rand      *rand.Rand
}

// ChatbotService 基于知识库关键词匹配的本地回答引擎
type ChatbotService struct {
	store     *knowledge.Store
	threshold float64
	now       func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewChatbotService(store *knowledge.Store, opts Options) *ChatbotService {
	if opts.Threshold <= 0 {
		opts.Threshold = constants.CONFIDENCE_THRESHOLD
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &ChatbotService{
		store:     store,
		threshold: opts.Threshold,
		now:       opts.Now,
		rand:      opts.Rand,
	}
}

// Respond 对每个 intent 计算命中关键词占比，取最高者；
// 最高占比低于阈值时从场景兜底回复中随机挑一句，置信度固定为 0.1
func (s *ChatbotService) Respond(_ context.Context, req request.ChatRequest) (Reply, error) {
	reply := Reply{Application: req.Application, Source: SourceLocal}
	if strings.TrimSpace(req.Message) == "" {
		reply.Response = emptyMessageReply
		reply.Intent = IntentEmpty
		return reply, nil
	}

	app, ok := s.store.Application(req.Application)
	if !ok {
		zlog.Warn("未知的场景，使用通用回复", zap.String("application", req.Application))
		reply.Response = genericFallbackText
		reply.Confidence = constants.FALLBACK_CONFIDENCE
		reply.Intent = IntentFallback
		return reply, nil
	}

	intent, confidence := Match(Preprocess(req.Message), app.Intents)
	if intent == nil || confidence < s.threshold {
		reply.Response = s.pick(app.Fallbacks, genericFallbackText)
		reply.Confidence = constants.FALLBACK_CONFIDENCE
		reply.Intent = IntentFallback
		return reply, nil
	}

	reply.Response = s.render(s.pick(intent.Responses, genericFallbackText))
	reply.Confidence = confidence
	reply.Intent = intent.Tag
	zlog.Debug("命中 intent", zap.String("application", req.Application), zap.String("intent", intent.Tag), zap.Float64("confidence", confidence))
	return reply, nil
}

// Match 返回命中占比最高的 intent；占比相同时保留靠前的
func Match(processed string, intents []knowledge.Intent) (*knowledge.Intent, float64) {
	padded := " " + processed + " "
	var best *knowledge.Intent
	bestConfidence := 0.0
	for i := range intents {
		patterns := intents[i].Patterns
		if len(patterns) == 0 {
			continue
		}
		matched := 0
		for _, pattern := range patterns {
			keyword := Preprocess(pattern)
			if keyword != "" && strings.Contains(padded, " "+keyword+" ") {
				matched++
			}
		}
		confidence := float64(matched) / float64(len(patterns))
		if confidence > bestConfidence {
			best = &intents[i]
			bestConfidence = confidence
		}
	}
	return best, bestConfidence
}

func (s *ChatbotService) pick(candidates []string, fallback string) string {
	if len(candidates) == 0 {
		return fallback
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return candidates[s.rand.IntN(len(candidates))]
}

// render 替换回复中的 {time} 与 {date} 占位符
func (s *ChatbotService) render(response string) string {
	if !strings.Contains(response, "{") {
		return response
	}
	now := s.now()
	return strings.NewReplacer(
		"{time}", now.Format("15:04"),
		"{date}", now.Format("Monday, January 02, 2006"),
	).Replace(response)
}
