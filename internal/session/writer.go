package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code-100-precent/LingVoice/pkg/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writerBufferSize 出站队列长度，covers TTS 流式输出的短时激增
	writerBufferSize = 200
	// ttsPreBufferCount 前 N 个音频包直接发送，之后按帧节奏限速
	ttsPreBufferCount = 5
	// ttsFrameInterval 下行音频帧节奏（20ms Opus 帧）
	ttsFrameInterval = 20 * time.Millisecond
)

// Conn 出站连接，*websocket.Conn 天然满足
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

type outMessage struct {
	messageType int
	data        []byte
	turnID      uint64 // 0 表示会话级消息，永不过期
}

// Writer 出站串行写入器。文本与音频共用一条有序队列，
// 过期回合的帧在出队时丢弃，音频帧按播放节奏限速。
type Writer struct {
	conn        Conn
	logger      *zap.Logger
	ch          chan outMessage
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	currentTurn func() uint64

	// packetCount 被写循环与回合启动方并发访问
	packetCount atomic.Int64
	lastSend    time.Time
}

// NewWriter 创建写入器并启动写循环
func NewWriter(ctx context.Context, conn Conn, currentTurn func() uint64, logger *zap.Logger) *Writer {
	ctx, cancel := context.WithCancel(ctx)
	w := &Writer{
		conn:        conn,
		logger:      logger,
		ch:          make(chan outMessage, writerBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		currentTurn: currentTurn,
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Close 停止写循环
func (w *Writer) Close() {
	w.cancel()
	w.wg.Wait()
}

// Done 写循环退出信号（出站写失败视为会话致命错误）
func (w *Writer) Done() <-chan struct{} {
	return w.ctx.Done()
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.ch:
			// 出队时再次核对回合，中断后残留的帧静默丢弃
			if msg.turnID != 0 && msg.turnID != w.currentTurn() {
				continue
			}
			if msg.messageType == websocket.BinaryMessage {
				w.pace()
			}
			if err := w.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					w.logger.Debug("[Writer] WebSocket 连接已关闭，停止写入", zap.Error(err))
				} else {
					w.logger.Error("[Writer] 写入 WebSocket 消息失败", zap.Error(err))
				}
				w.cancel()
				return
			}
			if msg.messageType == websocket.BinaryMessage {
				w.lastSend = time.Now()
			}
		}
	}
}

// pace 音频发送节奏控制：预缓冲之后按帧时长对齐
func (w *Writer) pace() {
	if w.packetCount.Add(1) <= ttsPreBufferCount {
		return
	}
	next := w.lastSend.Add(ttsFrameInterval)
	if delay := time.Until(next); delay > 0 {
		select {
		case <-time.After(delay):
		case <-w.ctx.Done():
		}
	}
}

// ResetPacing 新回合开始时重置预缓冲窗口
func (w *Writer) ResetPacing() {
	w.packetCount.Store(0)
}

func (w *Writer) enqueue(msg outMessage) {
	select {
	case <-w.ctx.Done():
	case w.ch <- msg:
	}
}

func (w *Writer) sendJSON(turnID uint64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("[Writer] 序列化消息失败", zap.Error(err))
		return
	}
	w.enqueue(outMessage{messageType: websocket.TextMessage, data: data, turnID: turnID})
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

type sttFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Timestamp int64  `json:"timestamp"`
}

// SendSTT 发送识别结果
func (w *Writer) SendSTT(turnID uint64, text string, final bool) {
	w.sendJSON(turnID, &sttFrame{Type: "stt", Text: text, Final: final, Timestamp: nowMillis()})
}

type llmTokenFrame struct {
	Type        string `json:"type"`
	Token       string `json:"token"`
	Accumulated string `json:"accumulated"`
	Finished    bool   `json:"finished"`
	Timestamp   int64  `json:"timestamp"`
}

// SendLLMToken 发送增量 token（客户端 UI 反馈用）
func (w *Writer) SendLLMToken(turnID uint64, token, accumulated string, finished bool) {
	w.sendJSON(turnID, &llmTokenFrame{
		Type: "llm_token", Token: token, Accumulated: accumulated,
		Finished: finished, Timestamp: nowMillis(),
	})
}

type sentenceFrame struct {
	Type      string `json:"type"`
	EventType string `json:"eventType"`
	Text      string `json:"text"`
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
}

// SendSentenceEnd 发送句子完结事件
func (w *Writer) SendSentenceEnd(turnID uint64, text string, index int) {
	w.sendJSON(turnID, &sentenceFrame{
		Type: "sentence", EventType: "sentence_end", Text: text,
		Index: index, Timestamp: nowMillis(),
	})
}

type errorFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SendError 发送用户可见错误（简短文案，不携带上游内部码）
func (w *Writer) SendError(message string) {
	w.sendJSON(0, &errorFrame{Type: "error", Message: message, Timestamp: nowMillis()})
}

type connectedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// SendConnected 会话建立确认
func (w *Writer) SendConnected(sessionID string) {
	w.sendJSON(0, &connectedFrame{Type: "connected", SessionID: sessionID, Timestamp: nowMillis()})
}

type pongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// SendPong 心跳响应
func (w *Writer) SendPong() {
	w.sendJSON(0, &pongFrame{Type: "pong", Timestamp: nowMillis()})
}

// SendTTSFrame 发送一帧下行 Opus 音频
func (w *Writer) SendTTSFrame(turnID uint64, opusPacket []byte, final bool) {
	w.enqueue(outMessage{
		messageType: websocket.BinaryMessage,
		data:        protocol.EncodeTTSFrame(opusPacket, final),
		turnID:      turnID,
	})
}
