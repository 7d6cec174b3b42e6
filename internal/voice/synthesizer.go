package voice

import (
	"context"
	"io"
	"strings"
	"unicode"
)

// Synthesizer convierte texto en audio MP3 escrito en w.
// langCode es el codigo corto ("ar", "en", "hi", "tl").
type Synthesizer interface {
	Synthesize(ctx context.Context, text, langCode string, w io.Writer) error
}

// CleanTextForTTS quita emojis, markdown y simbolos. Conserva letras, digitos,
// espacios, el bloque arabe y ". , ? !", y colapsa los espacios.
func CleanTextForTTS(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if keepForTTS(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func keepForTTS(r rune) bool {
	switch {
	case r >= 0xFE00 && r <= 0xFE0F:
		// selectores de variacion de emojis
		return false
	case r >= 0x0600 && r <= 0x06FF:
		return true
	case r == '.' || r == ',' || r == '?' || r == '!' || r == '_':
		return true
	case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r), unicode.IsSpace(r):
		return true
	}
	return false
}

// splitForTTS parte el texto en trozos de hasta maxRunes, cortando en espacios
// cuando es posible.
func splitForTTS(text string, maxRunes int) []string {
	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > maxRunes {
			flush()
			chunks = append(chunks, string(w[:maxRunes]))
			w = w[maxRunes:]
		}
		needed := len(w)
		if len(current) > 0 {
			needed++
		}
		if len(current)+needed > maxRunes {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	flush()
	return chunks
}
