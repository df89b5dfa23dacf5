package responder

import (
	"strings"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/shared"
)

const systemPrompt = `Voce e Lanne, uma assistente tecnica especializada em Linux e Debian.

REGRAS OBRIGATORIAS:
1. Responda APENAS em portugues brasileiro
2. NUNCA use emojis ou emoticons
3. Seja objetiva e concisa (maximo 4 paragrafos)
4. Use crases para destacar comandos: ` + "`comando`" + `
5. Quando analisar dados do sistema, foque nos problemas encontrados`

func styleInstruction(style domain.ResponseStyle) string {
	switch style {
	case domain.StyleAnalyze:
		return "Analise os dados coletados. Foque em: o que encontrou, problemas/alertas, e recomendacoes."
	case domain.StyleTutorial:
		return "De instrucoes claras e praticas. Use no maximo 3-4 comandos principais."
	default:
		return "Responda de forma casual e amigavel."
	}
}

// BuildPrompt renders the answer prompt. The context is cut to a fixed budget
// and omitted when empty.
func BuildPrompt(query, context string, style domain.ResponseStyle) string {
	var b strings.Builder
	b.WriteString("<|im_start|>system\n")
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	b.WriteString(styleInstruction(style))
	b.WriteString("\n<|im_end|>\n<|im_start|>user\n")
	b.WriteString(query)
	if context != "" {
		b.WriteString("\n\nCONTEXTO DISPONIVEL:\n")
		b.WriteString(shared.Truncate(context, maxContextChars))
	}
	b.WriteString("\n<|im_end|>\n<|im_start|>assistant\n")
	return b.String()
}
