package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Result es la salida cruda de un motor de transcripcion.
// Language es el codigo detectado por el modelo ("ar", "en", ...).
type Result struct {
	Text     string
	Language string
}

// Transcriber convierte un archivo de audio en texto y detecta el idioma.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// Lazy carga el motor la primera vez que se usa y lo reutiliza en todo el proceso.
// Si la carga falla, el siguiente uso vuelve a intentarla.
type Lazy struct {
	load func() (Transcriber, error)

	mu    sync.Mutex
	model Transcriber
}

func NewLazy(load func() (Transcriber, error)) *Lazy {
	return &Lazy{load: load}
}

func (l *Lazy) get() (Transcriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model, nil
	}
	model, err := l.load()
	if err != nil {
		return nil, fmt.Errorf("load transcription model: %w", err)
	}
	l.model = model
	return model, nil
}

func (l *Lazy) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	model, err := l.get()
	if err != nil {
		return Result{}, err
	}
	return model.Transcribe(ctx, audioPath)
}

// whisperLanguageNames cubre servidores que devuelven el nombre completo del idioma.
var whisperLanguageNames = map[string]string{
	"arabic":   "ar",
	"english":  "en",
	"hindi":    "hi",
	"tagalog":  "tl",
	"filipino": "fil",
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if code, ok := whisperLanguageNames[lang]; ok {
		return code
	}
	return lang
}

func joinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
