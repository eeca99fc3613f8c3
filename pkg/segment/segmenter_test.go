package segment

import (
	"reflect"
	"strings"
	"testing"
)

// feed 按 rune 逐个喂入，模拟最细粒度的 token 流
func feed(s *Segmenter, text string) []string {
	var out []string
	for _, r := range text {
		out = append(out, s.Push(string(r))...)
	}
	return out
}

// TestBasicSegmentation 测试基本分句
func TestBasicSegmentation(t *testing.T) {
	s := New()
	got := feed(s, "你好。今天天气不错！再见。")
	want := []string{"你好。", "今天天气不错！", "再见。"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %v, want %v", got, want)
	}
	if rest := s.Flush(); rest != "" {
		t.Errorf("Flush = %q, want empty", rest)
	}
}

// TestTerminalPunctuation 测试各终结标点
func TestTerminalPunctuation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"中文句号", "今天天气很好。", "今天天气很好。"},
		{"中文问号", "你吃饭了吗？", "你吃饭了吗？"},
		{"中文感叹号", "太好了！", "太好了！"},
		{"英文句号", "Hello world.", "Hello world."},
		{"分号", "第一点；", "第一点；"},
		{"换行", "第一行\n", "第一行\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feed(New(), tt.input)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("sentences = %v, want [%q]", got, tt.want)
			}
		})
	}
}

// TestMinLength 过短的片段不触发分句
func TestMinLength(t *testing.T) {
	s := New()
	if got := feed(s, "嗯。"); len(got) != 0 {
		t.Fatalf("short fragment emitted: %v", got)
	}
	// 后续内容把碎片并入下一句
	got := feed(s, "我觉得可以！")
	if len(got) != 1 || got[0] != "嗯。我觉得可以！" {
		t.Errorf("sentences = %v", got)
	}
}

// TestCommaDoesNotSplit 逗号不是句子边界
func TestCommaDoesNotSplit(t *testing.T) {
	s := New()
	if got := feed(s, "今天天气不错，适合出门"); len(got) != 0 {
		t.Fatalf("comma split: %v", got)
	}
	if rest := s.Flush(); rest != "今天天气不错，适合出门" {
		t.Errorf("Flush = %q", rest)
	}
}

// TestFlushResidual 流结束时未终结文本作为最后一句
func TestFlushResidual(t *testing.T) {
	s := New()
	feed(s, "好的。那我们")
	if rest := s.Flush(); rest != "那我们" {
		t.Errorf("Flush = %q, want %q", rest, "那我们")
	}
	// Flush 幂等
	if rest := s.Flush(); rest != "" {
		t.Errorf("second Flush = %q, want empty", rest)
	}
}

// TestFlushWhitespaceOnly 只剩空白时不产出句子
func TestFlushWhitespaceOnly(t *testing.T) {
	s := New()
	s.Push("  \n ")
	if rest := s.Flush(); rest != "" {
		t.Errorf("Flush = %q, want empty", rest)
	}
}

// TestPrefixProperty 任意前缀的输出是完整输入输出的前缀
func TestPrefixProperty(t *testing.T) {
	text := "你好。今天天气不错！我们，出去走走吧？好的；再见。"
	runes := []rune(text)

	full := feed(New(), text)
	for cut := 0; cut <= len(runes); cut++ {
		prefix := feed(New(), string(runes[:cut]))
		if len(prefix) > len(full) {
			t.Fatalf("prefix output longer than full output at cut %d", cut)
		}
		// 逐元素比较，空前缀时 nil 与空切片等价
		for i, sentence := range prefix {
			if sentence != full[i] {
				t.Fatalf("cut %d: sentence %d = %q, want %q", cut, i, sentence, full[i])
			}
		}
	}
}

// TestChunkedTokens 多字符 token 与逐字 token 结果一致
func TestChunkedTokens(t *testing.T) {
	text := "第一句话说完了。第二句也说完了！"
	byRune := feed(New(), text)

	s := New()
	var byChunk []string
	for _, chunk := range []string{"第一句话", "说完了。第二", "句也说完了！"} {
		byChunk = append(byChunk, s.Push(chunk)...)
	}
	if !reflect.DeepEqual(byRune, byChunk) {
		t.Errorf("byRune = %v, byChunk = %v", byRune, byChunk)
	}
}

// TestAccumulated 累计文本完整
func TestAccumulated(t *testing.T) {
	s := New()
	feed(s, "你好。在吗")
	if s.Accumulated() != "你好。在吗" {
		t.Errorf("Accumulated = %q", s.Accumulated())
	}
	s.Reset()
	if s.Accumulated() != "" || s.Flush() != "" {
		t.Error("Reset did not clear state")
	}
}

// TestLongStream 长流不丢内容
func TestLongStream(t *testing.T) {
	s := New()
	var pieces []string
	for i := 0; i < 50; i++ {
		pieces = append(pieces, feed(s, "这是一个完整的句子。")...)
	}
	if len(pieces) != 50 {
		t.Fatalf("sentences = %d, want 50", len(pieces))
	}
	if strings.Join(pieces, "") != s.Accumulated() {
		t.Error("joined sentences != accumulated text")
	}
}
