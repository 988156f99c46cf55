package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// RefusalAnswer replaces answers that fail the quality filter.
	RefusalAnswer = "抱歉，根據提供的資料我無法回答這個問題。請嘗試重新表述您的問題，或確認問題是否與財報內容相關。"
	// UnavailableAnswer is returned when the model cannot be reached.
	UnavailableAnswer = "目前無法連接到語言模型服務。請檢查 Ollama 服務是否正常運行。"
)

var uncertainPhrases = []string{
	"我不知道", "不清楚", "無法確定", "沒有足夠信息", "需要更多資料",
	"unable to", "don't know", "cannot determine", "insufficient information", "not enough data",
}

var questionWords = []string{"什麼", "如何", "為什麼", "哪裡", "何時", "誰"}

var moneyMarkers = []string{"元", "萬", "億", "$", "NT", "USD", "%"}

// Answer is a filtered model reply.
type Answer struct {
	Text     string `json:"answer"`
	Raw      string `json:"raw,omitempty"`
	Accepted bool   `json:"accepted"`
}

// FilterAnswer rejects hedging, very short or content-free replies. It
// returns the text to show and whether the reply was kept.
func FilterAnswer(raw string) (string, bool) {
	answer := strings.TrimSpace(raw)
	lower := strings.ToLower(answer)
	for _, p := range uncertainPhrases {
		if strings.Contains(lower, p) {
			return RefusalAnswer, false
		}
	}
	n := utf8.RuneCountInString(answer)
	if n < 20 {
		return RefusalAnswer, false
	}
	if n < 50 {
		for _, w := range questionWords {
			if strings.Contains(answer, w) {
				return RefusalAnswer, false
			}
		}
	}
	if n > 100 || strings.ContainsAny(answer, "0123456789") {
		return answer, true
	}
	for _, m := range moneyMarkers {
		if strings.Contains(answer, m) {
			return answer, true
		}
	}
	return RefusalAnswer, false
}

// Answerer turns a question and a packed context into a filtered answer.
type Answerer struct {
	gen Generator
	log *slog.Logger
}

func NewAnswerer(gen Generator, log *slog.Logger) *Answerer {
	if log == nil {
		log = slog.Default()
	}
	return &Answerer{gen: gen, log: log}
}

// Answer returns UnavailableAnswer together with the error when the model
// cannot be reached.
func (a *Answerer) Answer(ctx context.Context, question, packed string) (Answer, error) {
	raw, err := a.gen.Generate(ctx, BuildPrompt(question, packed))
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			a.log.Error("language model unavailable", "error", err)
			return Answer{Text: UnavailableAnswer}, err
		}
		return Answer{}, err
	}
	text, ok := FilterAnswer(raw)
	if !ok {
		a.log.Info("answer rejected by quality filter", "raw_len", utf8.RuneCountInString(raw))
	}
	return Answer{Text: text, Raw: raw, Accepted: ok}, nil
}
