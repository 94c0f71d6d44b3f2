package dialogue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics, so "Sí" and "si" compare equal.
// ñ folds to n.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokens splits folded text into words.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywordSet matches whole words and multi-word phrases against an utterance.
type keywordSet [][]string

func newKeywordSet(phrases ...string) keywordSet {
	ks := make(keywordSet, 0, len(phrases))
	for _, p := range phrases {
		if toks := Tokens(p); len(toks) > 0 {
			ks = append(ks, toks)
		}
	}
	return ks
}

// matchTokens reports whether any phrase appears as a contiguous token run.
func (ks keywordSet) matchTokens(tokens []string) bool {
	for _, phrase := range ks {
		if containsRun(tokens, phrase) {
			return true
		}
	}
	return false
}

func (ks keywordSet) match(s string) bool {
	return ks.matchTokens(Tokens(s))
}

func containsRun(tokens, run []string) bool {
	if len(run) == 0 || len(run) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(run) <= len(tokens); i++ {
		for j := range run {
			if tokens[i+j] != run[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

var (
	affirmativeWords = newKeywordSet("sí", "si", "yes", "correcto", "claro", "exacto", "afirmativo", "soy yo", "así es", "efectivamente")
	negativeWords    = newKeywordSet("no", "equivocado", "equivocada", "error", "incorrecto", "incorrecta")

	closureWords = newKeywordSet("no", "nada", "gracias", "hasta luego", "eso es todo", "es todo",
		"ninguna", "ninguno", "chao", "chau", "adiós")
	modelFarewell = newKeywordSet("hasta pronto", "hasta luego", "adiós", "que tengas un buen día")

	hoursWords = newKeywordSet("horario", "horarios", "hora", "horas", "entrada", "salida",
		"turno", "descanso", "refrigerio")
	locationWords = newKeywordSet("ubicación", "dirección", "oficina", "dónde", "queda", "ubicada",
		"ubicado", "llegar", "sede", "local")
	startWords = newKeywordSet("inicio", "inicia", "empiezo", "empezar", "comienzo", "comienza",
		"primer día", "presentarme", "incorporación", "onboarding")
	portalWords = newKeywordSet("portal", "web", "página", "link", "enlace", "plataforma", "intranet")
)

// hasTopic reports whether tokens ask about a known company fact.
func hasTopic(tokens []string) bool {
	return hoursWords.matchTokens(tokens) || locationWords.matchTokens(tokens) ||
		startWords.matchTokens(tokens) || portalWords.matchTokens(tokens)
}
