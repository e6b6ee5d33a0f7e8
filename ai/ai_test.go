package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const schema = "Table problem\n- problem_id integer NOT NULL [PK]\n\nTable tag\n- tag_id integer NOT NULL [PK]\n"

func TestOpenAIGenerateSQL(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"choices":[{"message":{"content":"SELECT * FROM problem"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "gpt-test", srv.URL+"/v1/")
	sql, err := p.GenerateSQL(context.Background(), schema, "list problems")

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM problem", sql)
	assert.Equal(t, "gpt-test", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Contains(t, msgs[1].(map[string]any)["content"], "list problems")
	assert.Contains(t, msgs[1].(map[string]any)["content"], "Table problem")
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "", srv.URL).GenerateSQL(context.Background(), schema, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOllamaGenerateSQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		io.WriteString(w, `{"message":{"content":"SELECT 1"}}`)
	}))
	defer srv.Close()

	sql, err := NewOllama(srv.URL, "").GenerateSQL(context.Background(), schema, "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":""}}`)
	}))
	defer empty.Close()
	_, err = NewOllama(empty.URL, "").GenerateSQL(context.Background(), schema, "q")
	assert.Error(t, err)
}

func TestAnthropicGenerateSQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, systemPromptSQL, body["system"])
		io.WriteString(w, `{"content":[{"type":"text","text":"SELECT "},{"type":"text","text":"2"}]}`)
	}))
	defer srv.Close()

	p := NewAnthropic("key", "")
	p.url = srv.URL
	sql, err := p.GenerateSQL(context.Background(), schema, "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", sql)
}

func TestGeminiGenerateSQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"SELECT 3"}]}}]}`)
	}))
	defer srv.Close()

	p := NewGemini("g-key", "gemini-test")
	p.baseURL = srv.URL
	sql, err := p.GenerateSQL(context.Background(), schema, "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", sql)
}

func TestPlaceholderPicksMentionedTable(t *testing.T) {
	p := NewPlaceholder()

	sql, err := p.GenerateSQL(context.Background(), schema, "Show every TAG please")
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "tag" LIMIT 50`, sql)

	sql, err = p.GenerateSQL(context.Background(), schema, "what time is it?")
	require.NoError(t, err)
	assert.Contains(t, sql, "now()")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.GenerateSQL(ctx, schema, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultAIConfig()

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "placeholder", p.Name())

	cfg.Provider = "openai"
	_, err = NewProvider(cfg)
	assert.Error(t, err, "missing key")

	cfg.OpenAI.APIKey = "sk"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "OpenAI (gpt-4o-mini)", p.Name())

	cfg.Provider = "ollama"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Ollama (llama3.2)", p.Name())

	cfg.Provider = "nope"
	_, err = NewProvider(cfg)
	assert.Error(t, err)
}

func TestWithLoggingRecordsCalls(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	applog.SetLogger(zap.New(core))
	t.Cleanup(func() { applog.SetLogger(nil) })

	p := WithLogging(NewPlaceholder())
	_, doubled := WithLogging(p).(loggingProvider).Provider.(loggingProvider)
	assert.False(t, doubled)
	_, err := p.GenerateSQL(context.Background(), schema, "problem list")
	require.NoError(t, err)

	entries := logs.FilterMessage("ai request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "placeholder", entries[0].ContextMap()["provider"])
	assert.Equal(t, `SELECT * FROM "problem" LIMIT 50`, entries[0].ContextMap()["response"])
}
