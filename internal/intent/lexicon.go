package intent

import (
	"strings"
	"unicode"

	"github.com/ashureev/lanne/internal/shared"
)

// Lexicons are stored normalized: lowercase, accent-free, single spaces.
var (
	greetingLexicon = []string{
		"oi", "ola", "bom dia", "boa tarde", "boa noite",
		"e ai", "eai", "hey", "opa", "fala", "salve",
	}

	casualLexicon = []string{
		"obrigado", "valeu", "brigado", "vlw", "tchau", "ate mais",
		"falou", "tmj", "quem e voce", "o que voce faz", "o que voce sabe",
	}

	technicalHints = []string{
		"memoria", "disco", "cpu", "rede", "ip", "processo", "servico", "log",
		"usuario", "uptime", "comando", "instalar", "configurar", "executar",
		"rodar", "travando", "lento", "erro", "falha", "problema", "nao funciona",
		"parou", "quebrou", "crashou", "tela preta", "boot", "iniciar", "desligar",
		"reiniciar", "atualizar", "computador", "sistema", "linux", "debian",
		"ubuntu", "terminal", "interface", "ram", "swap", "particao", "particoes",
		"porta", "conexao", "conexoes", "pacote", "apt", "dpkg", "ssh",
	}
)

const maxGreetingWords = 4

// normalize lowercases, folds accents and turns punctuation into single spaces.
func normalize(s string) string {
	s = shared.FoldAccents(strings.ToLower(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func isGreeting(norm string) bool {
	if len(strings.Fields(norm)) > maxGreetingWords {
		return false
	}
	for _, g := range greetingLexicon {
		if norm == g || strings.HasPrefix(norm, g+" ") {
			return true
		}
	}
	return false
}

func isCasual(norm string) bool {
	for _, p := range casualLexicon {
		if containsPhrase(norm, p) {
			return true
		}
	}
	return false
}

func hasTechnicalHint(norm string) bool {
	tokens := strings.Fields(norm)
	for _, h := range technicalHints {
		if strings.Contains(h, " ") {
			if containsPhrase(norm, h) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if hintMatches(tok, h) {
				return true
			}
		}
	}
	return false
}

// hintMatches accepts the hint and its regular plurals.
func hintMatches(token, hint string) bool {
	return token == hint || token == hint+"s" || token == hint+"es"
}

// containsPhrase matches phrase on word boundaries.
func containsPhrase(norm, phrase string) bool {
	return strings.Contains(" "+norm+" ", " "+phrase+" ")
}
