package planner

import (
	"strings"
)

// Primer is appended to the prompt so the model continues an already opened
// JSON object.
const Primer = `{"useAction":`

const planExamples = `Pergunta: "quem esta logado"
Resposta: {"useAction":true,"actionCommands":["logged_users"],"useKnowledge":false,"useWeb":false,"responseStyle":"ANALYZE"}

Pergunta: "qual o uso de memoria"
Resposta: {"useAction":true,"actionCommands":["memory_detailed"],"useKnowledge":false,"useWeb":false,"responseStyle":"ANALYZE"}

Pergunta: "qual meu IP"
Resposta: {"useAction":true,"actionCommands":["network_info"],"useKnowledge":false,"useWeb":false,"responseStyle":"ANALYZE"}

Pergunta: "mostre as informacoes de rede"
Resposta: {"useAction":true,"actionCommands":["network_info"],"useKnowledge":false,"useWeb":false,"responseStyle":"ANALYZE"}

Pergunta: "execute ip addr show"
Resposta: {"useAction":true,"actionCommands":["network_info"],"useKnowledge":false,"useWeb":false,"responseStyle":"ANALYZE"}

Pergunta: "como instalar docker"
Resposta: {"useAction":false,"actionCommands":[],"useKnowledge":true,"useWeb":false,"responseStyle":"TUTORIAL"}

Pergunta: "disco cheio o que faco"
Resposta: {"useAction":true,"actionCommands":["disk_usage"],"useKnowledge":true,"useWeb":false,"responseStyle":"ANALYZE"}`

const planRules = `1. Se a pergunta pede informacao do sistema ATUAL (meu, minha, atual, agora) -> useAction:true
2. Se a pergunta menciona IP, rede, interface, memoria, disco, cpu, usuarios -> useAction:true
3. Se a pergunta pede executar/rodar/verificar/mostrar algo do sistema -> useAction:true
4. Se e tutorial/como fazer/instalacao -> useKnowledge:true, useAction:false
5. Problema + sistema (disco cheio, lento, erro) -> useAction:true E useKnowledge:true`

// buildPromptPrefix renders everything before the user query. It depends
// only on the catalog, so it is built once per Planner.
func buildPromptPrefix(commands []string) string {
	var b strings.Builder
	b.WriteString("<|im_start|>system\n")
	b.WriteString("Decida quais recursos usar para responder sobre Linux.\n\n")
	b.WriteString("COMANDOS DISPONIVEIS: ")
	b.WriteString(strings.Join(commands, ", "))
	b.WriteString("\n\nREGRAS OBRIGATORIAS:\n")
	b.WriteString(planRules)
	b.WriteString("\n\nEXEMPLOS (siga este padrao EXATAMENTE):\n\n")
	b.WriteString(planExamples)
	b.WriteString("\n\nResposta SOMENTE JSON em uma linha, sem texto adicional.\n")
	b.WriteString("<|im_end|>\n<|im_start|>user\n")
	return b.String()
}

func (p *Planner) prompt(query string) string {
	return p.prefix + query + "\n<|im_end|>\n<|im_start|>assistant\n" + Primer
}
