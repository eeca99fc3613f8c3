// Package segment turns a live LLM token stream into complete spoken
// sentences. Early sentence emission is the main latency lever of the
// pipeline: synthesis of sentence N starts while the model is still
// generating sentence N+1.
package segment

import "unicode"

// 句子终结标点
var terminals = map[rune]bool{
	'。': true, '！': true, '？': true,
	'.': true, '!': true, '?': true,
	'；': true, ';': true, '\n': true,
}

// minVisibleRunes 终结标点落地时句子必须达到的可见字符数，
// 防止 "嗯。"、省略号之类的碎片触发合成
const minVisibleRunes = 3

// Segmenter 对追加式 token 流做句子切分。只追加、带游标，
// 可重启但不可回退：同一前缀的输入总是产出同一前缀的句子序列。
type Segmenter struct {
	buf    []rune
	cursor int
}

// New 创建切分器
func New() *Segmenter {
	return &Segmenter{}
}

// Push 追加一个 token，返回因此完结的句子（可能为空或多个）
func (s *Segmenter) Push(token string) []string {
	var sentences []string
	for _, r := range token {
		s.buf = append(s.buf, r)
		if !terminals[r] {
			continue
		}
		pending := s.buf[s.cursor:]
		if visibleRunes(pending) < minVisibleRunes {
			continue
		}
		sentences = append(sentences, string(pending))
		s.cursor = len(s.buf)
	}
	return sentences
}

// Flush 流结束时取出残余文本，未终结也作为最后一句返回；
// 没有残余（或只剩空白）时返回空串
func (s *Segmenter) Flush() string {
	pending := s.buf[s.cursor:]
	s.cursor = len(s.buf)
	if visibleRunes(pending) == 0 {
		return ""
	}
	return string(pending)
}

// Accumulated 到目前为止收到的全部文本
func (s *Segmenter) Accumulated() string {
	return string(s.buf)
}

// Reset 清空状态，供新一轮对话复用
func (s *Segmenter) Reset() {
	s.buf = s.buf[:0]
	s.cursor = 0
}

func visibleRunes(rs []rune) int {
	n := 0
	for _, r := range rs {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
