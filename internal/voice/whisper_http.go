package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WhisperHTTP transcribe contra un servidor Whisper local con API
// OpenAI-compatible (faster-whisper-server, speaches, LocalAI).
// El modelo vive en el servidor y se carga una sola vez alli.
type WhisperHTTP struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewWhisperHTTP(baseURL, model, apiKey string) *WhisperHTTP {
	return &WhisperHTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type verboseTranscription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

func (w *WhisperHTTP) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("copy audio: %w", err)
	}
	// Sin "language": el servidor detecta el idioma.
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("beam_size", "5")
	_ = mw.WriteField("vad_filter", "true")
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Result{}, fmt.Errorf("whisper server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var vt verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&vt); err != nil {
		return Result{}, fmt.Errorf("decode whisper response: %w", err)
	}

	text := strings.TrimSpace(vt.Text)
	if len(vt.Segments) > 0 {
		segments := make([]string, 0, len(vt.Segments))
		for _, s := range vt.Segments {
			segments = append(segments, s.Text)
		}
		text = joinSegments(segments)
	}

	return Result{
		Text:     text,
		Language: normalizeLanguage(vt.Language),
	}, nil
}
