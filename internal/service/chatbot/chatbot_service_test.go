package chatbot

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/service/knowledge"

	"github.com/stretchr/testify/require"
)

const defaultDataFile = "../../../config/default_data.json"

func newService(t *testing.T) *ChatbotService {
	t.Helper()
	store := knowledge.NewStore(filepath.Join(t.TempDir(), "chatbot_data.json"))
	require.NoError(t, store.LoadOrSeed(defaultDataFile))
	return NewChatbotService(store, Options{
		Threshold: 0.3,
		Now:       func() time.Time { return time.Date(2024, time.March, 5, 14, 5, 0, 0, time.UTC) },
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
}

func responsesOf(t *testing.T, s *ChatbotService, application, tag string) []string {
	t.Helper()
	app, ok := s.store.Application(application)
	require.True(t, ok)
	if tag == IntentFallback {
		return app.Fallbacks
	}
	for _, intent := range app.Intents {
		if intent.Tag == tag {
			return intent.Responses
		}
	}
	t.Fatalf("intent %s not found", tag)
	return nil
}

func Test_Preprocess(t *testing.T) {
	require.Equal(t, "my order be return", Preprocess("My ORDERS were... returned!"))
	require.Equal(t, "whats the time", Preprocess("  What's the time?? "))
	require.Equal(t, "", Preprocess("?!"))
}

func Test_Respond_Matches_Best_Intent(t *testing.T) {
	tests := []struct {
		name        string
		application string
		message     string
		intent      string
		confidence  float64
	}{
		{"greeting", "customer_support", "Hello there", "greeting", 1.0 / 3},
		{"order status", "customer_support", "I want to track my order status", "order_status", 0.75},
		{"lemmatized return", "customer_support", "My orders were returned", "return_refund", 1.0 / 3},
		{"college tuition", "college_helpdesk", "Is there a scholarship or financial aid?", "tuition", 0.6},
		{"hr interview", "hr_recruitment", "how does the interview process work", "interview", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			s := newService(t)

			reply, err := s.Respond(context.Background(), request.ChatRequest{Message: tt.message, UserId: "u1", Application: tt.application})
			req.NoError(err)
			req.Equal(tt.intent, reply.Intent)
			req.InDelta(tt.confidence, reply.Confidence, 1e-9)
			req.Equal(tt.application, reply.Application)
			req.Equal(SourceLocal, reply.Source)
			req.Contains(responsesOf(t, s, tt.application, tt.intent), reply.Response)
		})
	}
}

func Test_Respond_Below_Threshold_Falls_Back(t *testing.T) {
	req := require.New(t)
	s := newService(t)

	// product_issue 有 5 个关键词，只命中 1 个，占比 0.2
	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "I received a defective product", Application: "customer_support"})
	req.NoError(err)
	req.Equal(IntentFallback, reply.Intent)
	req.Equal(0.1, reply.Confidence)
	req.Contains(responsesOf(t, s, "customer_support", IntentFallback), reply.Response)
}

func Test_Respond_Keywords_Match_Whole_Words(t *testing.T) {
	s := newService(t)

	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "this thing", Application: "customer_support"})
	require.NoError(t, err)
	require.Equal(t, IntentFallback, reply.Intent, "'hi' must not match inside 'this'")
}

func Test_Respond_Renders_Time_Placeholder(t *testing.T) {
	req := require.New(t)
	s := newService(t)

	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "what time is it", Application: "personal_assistant"})
	req.NoError(err)
	req.Equal("time", reply.Intent)
	req.Contains(reply.Response, "14:05")
	req.NotContains(reply.Response, "{time}")
}

func Test_Respond_Unknown_Application(t *testing.T) {
	s := newService(t)

	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "hello", Application: "space_travel"})
	require.NoError(t, err)
	require.Equal(t, genericFallbackText, reply.Response)
	require.Equal(t, 0.1, reply.Confidence)
	require.Equal(t, "space_travel", reply.Application)
}

func Test_Respond_Empty_Message(t *testing.T) {
	s := newService(t)

	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "   ", Application: "customer_support"})
	require.NoError(t, err)
	require.Equal(t, emptyMessageReply, reply.Response)
	require.Zero(t, reply.Confidence)
}

func Test_Respond_Uses_Trained_Example(t *testing.T) {
	req := require.New(t)
	s := newService(t)
	req.NoError(s.store.AddExample("customer_support", "warranty", "All products carry a two year warranty.", "warranty"))

	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "What about the warranty?", Application: "customer_support"})
	req.NoError(err)
	req.Equal("warranty", reply.Intent)
	req.Equal("All products carry a two year warranty.", reply.Response)
	req.Equal(1.0, reply.Confidence)
}

func Test_Match_Keeps_First_On_Tie(t *testing.T) {
	intents := []knowledge.Intent{
		{Tag: "a", Patterns: []string{"x", "y"}},
		{Tag: "b", Patterns: []string{"x", "z"}},
	}
	intent, confidence := Match("x", intents)
	require.Equal(t, "a", intent.Tag)
	require.Equal(t, 0.5, confidence)

	intent, confidence = Match("nothing", intents)
	require.Nil(t, intent)
	require.Zero(t, confidence)
}

type stubResponder struct {
	reply Reply
	err   error
	calls int
}

func (s *stubResponder) Respond(context.Context, request.ChatRequest) (Reply, error) {
	s.calls++
	return s.reply, s.err
}

func Test_Chain_Falls_Through_To_Next(t *testing.T) {
	req := require.New(t)
	failing := &stubResponder{err: errors.New("upstream down")}
	local := &stubResponder{reply: Reply{Response: "local answer", Source: SourceLocal}}

	reply, err := Chain{failing, local}.Respond(context.Background(), request.ChatRequest{Message: "hi"})
	req.NoError(err)
	req.Equal("local answer", reply.Response)
	req.Equal(1, failing.calls)
	req.Equal(1, local.calls)
}

func Test_Chain_Stops_At_First_Success(t *testing.T) {
	first := &stubResponder{reply: Reply{Response: "first"}}
	second := &stubResponder{reply: Reply{Response: "second"}}

	reply, err := Chain{first, second}.Respond(context.Background(), request.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "first", reply.Response)
	require.Zero(t, second.calls)
}

func Test_Chain_Errors(t *testing.T) {
	_, err := Chain{}.Respond(context.Background(), request.ChatRequest{})
	require.ErrorIs(t, err, ErrNoResponder)

	boom := errors.New("boom")
	_, err = Chain{&stubResponder{err: boom}}.Respond(context.Background(), request.ChatRequest{})
	require.ErrorIs(t, err, boom)
}
