// Package handler wires the HTTP surface: the conversation WebSocket
// endpoint and a health probe.
package handler

import (
	"context"
	"net/http"

	"github.com/code-100-precent/LingVoice/internal/session"
	"github.com/code-100-precent/LingVoice/pkg/character"
	"github.com/code-100-precent/LingVoice/pkg/providers"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler 会话入口
type WSHandler struct {
	registry   *providers.Registry
	characters *character.Registry
	defaults   session.ConversationConfig
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler 创建处理器
func NewWSHandler(registry *providers.Registry, characters *character.Registry, defaults session.ConversationConfig, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		registry:   registry,
		characters: characters,
		defaults:   defaults,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 客户端来源多样（App WebView、小程序），不校验 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes 注册路由
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/conversation", h.HandleConversation)
	r.GET("/health", h.Health)
}

// HandleConversation 升级 WebSocket 并托管整个会话生命周期。
// 对话配置 = 服务端默认值 + 连接 query 参数覆盖。
func (h *WSHandler) HandleConversation(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("[Handler] WebSocket 升级失败", zap.Error(err))
		return
	}

	cfg := h.defaults
	opts := make(map[string]interface{})
	for key, vals := range c.Request.URL.Query() {
		if len(vals) > 0 {
			opts[key] = vals[0]
		}
	}
	cfg.ApplyOptions(opts)

	// 连接已被劫持，会话生命周期不再跟随请求上下文
	sess, err := session.New(context.Background(), &session.Options{
		Conn:       conn,
		Logger:     h.logger,
		Config:     cfg,
		Registry:   h.registry,
		Characters: h.characters,
	})
	if err != nil {
		h.logger.Error("[Handler] 创建会话失败", zap.Error(err))
		_ = conn.Close()
		return
	}
	h.logger.Info("[Handler] 会话建立",
		zap.String("session_id", sess.ID()),
		zap.String("remote", c.Request.RemoteAddr))
	sess.Run()
}

// Health 健康检查
func (h *WSHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
