// Package session owns a live conversation: it demultiplexes the
// mixed text/binary WebSocket channel, keeps the per-connection state
// machine, and drives the ASR→LLM→TTS pipeline for each turn.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/code-100-precent/LingVoice/pkg/character"
	"github.com/code-100-precent/LingVoice/pkg/events"
	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/protocol"
	"github.com/code-100-precent/LingVoice/pkg/providers"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid"
	"go.uber.org/zap"
)

// Options 会话依赖
type Options struct {
	Conn       *websocket.Conn
	Logger     *zap.Logger
	Config     ConversationConfig
	Registry   *providers.Registry
	Characters *character.Registry
}

// Session 一条 WebSocket 连接上的语音会话
type Session struct {
	id         string
	cfg        ConversationConfig
	logger     *zap.Logger
	conn       *websocket.Conn
	writer     *Writer
	registry   *providers.Registry
	characters *character.Registry
	coder      *media.OpusCoder

	ctx    context.Context
	cancel context.CancelFunc
	st     state

	turnMu     sync.Mutex
	turnCancel context.CancelFunc
	turnDone   chan struct{}

	stopOnce sync.Once
}

// New 创建会话并发送 connected 确认
func New(ctx context.Context, opt *Options) (*Session, error) {
	if opt.Logger == nil {
		opt.Logger = zap.L()
	}
	return newSession(ctx, opt.Conn, opt)
}

// newSession 出站端可注入，便于测试
func newSession(ctx context.Context, sink Conn, opt *Options) (*Session, error) {
	coder, err := media.NewOpusCoder()
	if err != nil {
		return nil, fmt.Errorf("create opus coder: %w", err)
	}
	id, err := gonanoid.Nanoid()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         id,
		cfg:        opt.Config,
		logger:     opt.Logger.With(zap.String("session_id", id)),
		registry:   opt.Registry,
		characters: opt.Characters,
		coder:      coder,
		ctx:        sessionCtx,
		cancel:     cancel,
	}
	s.conn = opt.Conn
	s.writer = NewWriter(sessionCtx, sink, s.st.currentTurnID, s.logger)
	// 写循环退出（含写失败）后关闭整个会话，唤醒阻塞中的读循环
	go func() {
		<-s.writer.Done()
		s.Stop()
	}()
	s.writer.SendConnected(id)
	events.PublishEvent(events.SessionOpened, map[string]interface{}{"session_id": id}, "session")
	return s, nil
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// Run 阻塞式消息循环，连接断开或会话关闭时返回
func (s *Session) Run() {
	defer s.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.writer.Done():
			// 出站写失败是会话级致命错误
			return
		default:
		}
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Info("[Session] WebSocket 连接正常关闭")
			} else {
				s.logger.Warn("[Session] 读取 WebSocket 消息失败", zap.Error(err))
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			s.handleText(message)
		case websocket.BinaryMessage:
			s.handleBinary(message)
		}
	}
}

// Stop 关闭会话并释放资源，可重复调用
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("[Session] 关闭会话")
		s.abort()
		s.st.close()
		s.cancel()
		s.writer.Close()
		if s.conn != nil {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			_ = s.conn.Close()
		}
		events.PublishEvent(events.SessionClosed, map[string]interface{}{"session_id": s.id}, "session")
	})
}

// textMessage 入站 JSON 消息
type textMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
}

// handleText 路由入站文本帧
func (s *Session) handleText(data []byte) {
	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("[Session] 解析文本消息失败", zap.Error(err))
		s.writer.SendError("消息格式错误")
		return
	}
	switch msg.Type {
	case "text":
		if msg.Text == "" {
			s.writer.SendError("消息缺少 text 字段")
			return
		}
		s.startTextTurn(msg.Text)
	case "control":
		s.handleControl(msg.Action)
	default:
		// 未知类型只记录，不断开会话
		s.logger.Warn("[Session] 未知消息类型", zap.String("type", msg.Type))
	}
}

// handleControl 控制指令
func (s *Session) handleControl(action string) {
	switch action {
	case "abort":
		s.logger.Info("[Session] 收到中断请求")
		s.abort()
	case "ping":
		s.writer.SendPong()
	case "start", "stop", "config":
		// 预留指令
		s.logger.Info("[Session] 预留控制指令", zap.String("action", action))
	default:
		s.logger.Warn("[Session] 未知控制指令", zap.String("action", action))
	}
}

// handleBinary 路由入站二进制帧
func (s *Session) handleBinary(data []byte) {
	frame, err := protocol.Parse(data)
	if err != nil {
		s.logger.Warn("[Session] 非法二进制帧", zap.Error(err))
		s.writer.SendError("消息格式错误")
		return
	}
	if frame.Type != protocol.FrameAudioInput {
		s.logger.Warn("[Session] 入站帧类型错误", zap.Uint8("type", frame.Type))
		s.writer.SendError("消息格式错误")
		return
	}
	if !s.st.receiving() {
		s.st.beginAudio(frame.Format)
	}
	s.st.appendAudio(frame.Payload)
	if frame.Final {
		s.startAudioTurn()
	}
}

// abort 中断当前回合：置取消标志并递增回合号，幂等。
// 旧回合的出站帧在发送端被丢弃。
func (s *Session) abort() {
	s.turnMu.Lock()
	cancel := s.turnCancel
	if cancel != nil {
		prior := s.st.currentTurnID()
		s.st.setPhase(PhaseAborted)
		s.st.nextTurnID()
		s.logger.Info("[Session] 中断回合", zap.Uint64("turn_id", prior))
		events.PublishEvent(events.TurnAborted,
			map[string]interface{}{"session_id": s.id, "turn_id": prior}, "session")
	}
	s.turnMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// startTurn 中断旧回合、等其退出，再以新回合号启动编排任务
func (s *Session) startTurn(run func(ctx context.Context, turnID uint64)) {
	s.turnMu.Lock()
	for s.turnCancel != nil {
		cancel, done := s.turnCancel, s.turnDone
		s.st.setPhase(PhaseAborted)
		s.st.nextTurnID()
		s.turnMu.Unlock()
		cancel()
		<-done
		s.turnMu.Lock()
	}
	if s.st.closed() {
		s.turnMu.Unlock()
		return
	}
	turnID := s.st.nextTurnID()
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.turnCancel, s.turnDone = cancel, done
	s.turnMu.Unlock()

	s.writer.ResetPacing()
	events.PublishEvent(events.TurnStarted,
		map[string]interface{}{"session_id": s.id, "turn_id": turnID}, "session")

	go func() {
		defer func() {
			cancel()
			s.turnMu.Lock()
			if s.turnDone == done {
				s.turnCancel, s.turnDone = nil, nil
			}
			s.turnMu.Unlock()
			s.st.settleIdle()
			close(done)
		}()
		run(ctx, turnID)
	}()
}
