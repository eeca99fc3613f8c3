package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/code-100-precent/LingVoice/internal/session"
	"github.com/code-100-precent/LingVoice/pkg/character"
	"github.com/code-100-precent/LingVoice/pkg/providers"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := providers.NewRegistry()
	registry.Seal()
	h := NewWSHandler(registry, character.NewRegistry(), session.ConversationConfig{
		ASRProvider: "zhipu", ASRModel: "chirp-beta",
		LLMProvider: "zhipu", LLMModel: "glm-4-flash",
		TTSProvider: "zhipu", TTSModel: "glm-tts", TTSVoice: "female",
		CharacterID: "default", MaxTokens: 256,
	}, zap.NewNop())
	r := gin.New()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestConversationHandshakeAndPing(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversation?ttsVoice=male"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	connected := readJSON(t, conn)
	assert.Equal(t, "connected", connected["type"])
	assert.NotEmpty(t, connected["sessionId"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"control","action":"ping"}`)))
	pong := readJSON(t, conn)
	assert.Equal(t, "pong", pong["type"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
