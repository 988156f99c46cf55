package llm

import (
	"fmt"
	"strings"
)

const SystemPrompt = `你是一個專業的財務分析助手，根據提供的財報內容回答問題。
請使用繁體中文回答，比較時標明資料來自哪一份報告，找不到資訊時請直接說明。`

// BuildPrompt assembles the system prompt, the packed report context and the
// question.
func BuildPrompt(question, context string) string {
	var sb strings.Builder
	sb.WriteString(SystemPrompt)
	sb.WriteString("\n\n---\n")
	if strings.TrimSpace(context) == "" {
		sb.WriteString("(沒有相關的財報內容)\n")
	} else {
		sb.WriteString(context)
		sb.WriteString("\n")
	}
	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("問題：%s\n", strings.TrimSpace(question)))
	return sb.String()
}
