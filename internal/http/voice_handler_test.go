package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func audioRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" || content != nil {
		part, err := mw.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/voice-to-text", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func scratchEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	return len(entries)
}

func TestVoiceHandler_UploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     int
	}{
		{name: "missing file", want: http.StatusBadRequest},
		{name: "bad extension", filename: "voice.txt", content: []byte("data"), want: http.StatusBadRequest},
		{name: "empty file", filename: "voice.wav", content: []byte{}, want: http.StatusBadRequest},
		{name: "upper case extension", filename: "VOICE.WAV", content: []byte("RIFF"), want: http.StatusOK},
		{name: "webm", filename: "clip.webm", content: []byte("webm"), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			rec := app.client(t).do(audioRequest(t, tt.filename, tt.content))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if n := scratchEntries(t, app.scratchDir); n != 0 {
				t.Fatalf("expected scratch dir to be empty, got %d files", n)
			}
		})
	}
}

func TestVoiceHandler_ReturnsAudioWithHeaders(t *testing.T) {
	app := newTestApp(t)
	rec := app.client(t).do(audioRequest(t, "question.wav", []byte("RIFF....")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "response.mp3") {
		t.Fatalf("expected attachment response.mp3, got %q", cd)
	}
	if rec.Header().Get("X-Encoding") != "base64" {
		t.Fatalf("expected X-Encoding base64")
	}
	if rec.Header().Get("X-Language") != "ar" {
		t.Fatalf("expected X-Language ar, got %q", rec.Header().Get("X-Language"))
	}
	transcription, err := base64.StdEncoding.DecodeString(rec.Header().Get("X-Transcription"))
	if err != nil || string(transcription) != "ما هي حقوقي" {
		t.Fatalf("unexpected transcription header %q", rec.Header().Get("X-Transcription"))
	}
	reply, err := base64.StdEncoding.DecodeString(rec.Header().Get("X-Response-Text"))
	if err != nil || string(reply) != "الإجابة القانونية" {
		t.Fatalf("unexpected response header %q", rec.Header().Get("X-Response-Text"))
	}
	if rec.Body.String() != "ID3-fake-mp3" {
		t.Fatalf("unexpected audio body %q", rec.Body.String())
	}
	if app.synth.langCode != "ar" {
		t.Fatalf("expected synthesis in ar, got %q", app.synth.langCode)
	}
	if n := scratchEntries(t, app.scratchDir); n != 0 {
		t.Fatalf("expected scratch files to be cleaned, got %d", n)
	}
}

func TestVoiceHandler_SynthesisFailureFallsBackToJSON(t *testing.T) {
	app := newTestApp(t)
	app.transcriber.result.Language = "en"
	app.transcriber.result.Text = "what are my rights"
	app.synth.err = errors.New("tts unavailable")

	rec := app.client(t).do(audioRequest(t, "question.mp3", []byte("ID3")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success        bool   `json:"success"`
		Transcription  string `json:"transcription"`
		Language       string `json:"language"`
		Response       string `json:"response"`
		AudioAvailable bool   `json:"audio_available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.AudioAvailable {
		t.Fatalf("expected success without audio, got %+v", resp)
	}
	if resp.Transcription != "what are my rights" || resp.Language != "English" {
		t.Fatalf("unexpected transcript fields %+v", resp)
	}
	if resp.Response == "" {
		t.Fatalf("expected text response")
	}
}

func TestVoiceHandler_TranscriptionFailure(t *testing.T) {
	app := newTestApp(t)
	app.transcriber.err = errors.New("model crashed")

	rec := app.client(t).do(audioRequest(t, "question.wav", []byte("RIFF")))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
}

func TestVoiceHandler_NoSpeechDetected(t *testing.T) {
	app := newTestApp(t)
	app.transcriber.result.Text = ""

	rec := app.client(t).do(audioRequest(t, "question.wav", []byte("RIFF")))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(app.llm.Calls) != 0 {
		t.Fatalf("expected no llm call for empty transcript")
	}
}

func TestVoiceHandler_TextToSpeech(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		app := newTestApp(t)
		for _, body := range []string{`{}`, `{"text":""}`, `{"text":"  "}`} {
			rec := app.client(t).postJSON("/text-to-speech", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
			}
		}
	})

	t.Run("default language", func(t *testing.T) {
		app := newTestApp(t)
		rec := app.client(t).postJSON("/text-to-speech", `{"text":"مرحباً"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "audio/mpeg" {
			t.Fatalf("expected audio/mpeg, got %q", rec.Header().Get("Content-Type"))
		}
		if app.synth.langCode != "ar" {
			t.Fatalf("expected ar, got %q", app.synth.langCode)
		}
	})

	t.Run("hindi", func(t *testing.T) {
		app := newTestApp(t)
		rec := app.client(t).postJSON("/text-to-speech", `{"text":"नमस्ते","language":"हिंदी"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if app.synth.langCode != "hi" {
			t.Fatalf("expected hi, got %q", app.synth.langCode)
		}
	})

	t.Run("synthesis failure", func(t *testing.T) {
		app := newTestApp(t)
		app.synth.err = errors.New("tts unavailable")
		rec := app.client(t).postJSON("/text-to-speech", `{"text":"مرحباً"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if n := scratchEntries(t, app.scratchDir); n != 0 {
			t.Fatalf("expected scratch files to be cleaned, got %d", n)
		}
	})
}
