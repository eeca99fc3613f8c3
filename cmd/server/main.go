package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-100-precent/LingVoice/internal/handler"
	"github.com/code-100-precent/LingVoice/internal/session"
	"github.com/code-100-precent/LingVoice/pkg/character"
	"github.com/code-100-precent/LingVoice/pkg/config"
	"github.com/code-100-precent/LingVoice/pkg/events"
	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/code-100-precent/LingVoice/pkg/providers"
	"github.com/code-100-precent/LingVoice/pkg/providers/zhipu"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(&cfg.Log, cfg.Server.Mode); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	if cfg.Providers.ZhipuAPIKey == "" {
		logger.Warn("[Main] 未配置 ZHIPU_API_KEY，上游调用将失败")
	}

	registry := providers.NewRegistry()
	registry.RegisterASR("zhipu", zhipu.NewTranscriber(cfg.Providers.ZhipuAPIKey, cfg.Providers.ZhipuBaseURL, logger.Lg))
	registry.RegisterLLM("zhipu", zhipu.NewChatProvider(cfg.Providers.ZhipuAPIKey, cfg.Providers.ZhipuBaseURL, logger.Lg))
	registry.RegisterTTS("zhipu", zhipu.NewSynthesizer(cfg.Providers.ZhipuAPIKey, cfg.Providers.ZhipuBaseURL))
	registry.Seal()

	characters := character.NewRegistry()

	// 会话生命周期事件落日志，便于排查线上回合行为
	events.GetEventBus().Subscribe("*", func(e events.Event) error {
		logger.Debug("[Event] "+e.Type,
			zap.String("event_id", e.ID),
			zap.String("source", e.Source),
			zap.Any("data", e.Data))
		return nil
	})

	defaults := session.ConversationConfig{
		ASRProvider: cfg.Voice.ASRProvider,
		ASRModel:    cfg.Voice.ASRModel,
		LLMProvider: cfg.Voice.LLMProvider,
		LLMModel:    cfg.Voice.LLMModel,
		TTSProvider: cfg.Voice.TTSProvider,
		TTSModel:    cfg.Voice.TTSModel,
		TTSVoice:    cfg.Voice.TTSVoice,
		CharacterID: cfg.Voice.CharacterID,
		MaxTokens:   cfg.Voice.MaxTokens,
	}

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	ws := handler.NewWSHandler(registry, characters, defaults, logger.Lg)
	ws.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("[Main] 服务启动", zap.String("addr", cfg.Server.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Main] 服务启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[Main] 收到退出信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("[Main] 优雅关闭失败", zap.Error(err))
	}
	logger.Info("[Main] 服务已退出")
}
