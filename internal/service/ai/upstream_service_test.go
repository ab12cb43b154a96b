package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatbot_server/internal/config"
	"chatbot_server/internal/dto/request"
	"chatbot_server/internal/service/chatbot"

	"github.com/stretchr/testify/require"
)

func Test_Upstream_Disabled(t *testing.T) {
	s := NewUpstreamService(config.UpstreamConfig{})
	require.False(t, s.Enabled())

	_, err := s.Respond(context.Background(), request.ChatRequest{Message: "hi"})
	require.ErrorIs(t, err, ErrUpstreamDisabled)
}

func Test_Upstream_Forwards_Request(t *testing.T) {
	req := require.New(t)
	var received request.ChatRequest
	var method, path, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"response":"from upstream","confidence":0.9,"application":"hr_recruitment","intent":"openings"}`))
	}))
	defer server.Close()

	s := NewUpstreamService(config.UpstreamConfig{BaseUrl: server.URL + "/", ApiKey: "secret", Timeout: time.Second})
	reply, err := s.Respond(context.Background(), request.ChatRequest{Message: "any jobs?", UserId: "u1", Application: "hr_recruitment"})
	req.NoError(err)
	req.Equal(http.MethodPost, method)
	req.Equal("/api/chat", path)
	req.Equal(request.ChatRequest{Message: "any jobs?", UserId: "u1", Application: "hr_recruitment"}, received)
	req.Equal("Bearer secret", auth)
	req.Equal(chatbot.Reply{
		Response:    "from upstream",
		Confidence:  0.9,
		Application: "hr_recruitment",
		Intent:      "openings",
		Source:      chatbot.SourceUpstream,
	}, reply)
}

func Test_Upstream_Error_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer server.Close()

	_, err := NewUpstreamService(config.UpstreamConfig{BaseUrl: server.URL}).Respond(context.Background(), request.ChatRequest{Message: "hi"})
	require.ErrorContains(t, err, "status 500")
}

func Test_Upstream_Reports_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"model offline"}`))
	}))
	defer server.Close()

	_, err := NewUpstreamService(config.UpstreamConfig{BaseUrl: server.URL}).Respond(context.Background(), request.ChatRequest{Message: "hi"})
	require.ErrorContains(t, err, "model offline")
}

func Test_Upstream_Falls_Back_To_Local_In_Chain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	local := localStub{}
	chain := chatbot.Chain{NewUpstreamService(config.UpstreamConfig{BaseUrl: server.URL}), local}
	reply, err := chain.Respond(context.Background(), request.ChatRequest{Message: "hi", Application: "customer_support"})
	require.NoError(t, err)
	require.Equal(t, chatbot.SourceLocal, reply.Source)
}

type localStub struct{}

func (localStub) Respond(_ context.Context, req request.ChatRequest) (chatbot.Reply, error) {
	return chatbot.Reply{Response: "local", Application: req.Application, Source: chatbot.SourceLocal}, nil
}
