package voice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type stubTranscriber struct {
	result Result
	err    error
	paths  []string
}

func (s *stubTranscriber) Transcribe(_ context.Context, path string) (Result, error) {
	s.paths = append(s.paths, path)
	return s.result, s.err
}

func TestLazyLoadsOnce(t *testing.T) {
	var loads int
	l := NewLazy(func() (Transcriber, error) {
		loads++
		return &stubTranscriber{result: Result{Text: "hola", Language: "ar"}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Transcribe(context.Background(), "a.wav"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if loads != 1 {
		t.Fatalf("expected model loaded once, got %d", loads)
	}
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	attempts := 0
	l := NewLazy(func() (Transcriber, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("model missing")
		}
		return &stubTranscriber{}, nil
	})
	if _, err := l.Transcribe(context.Background(), "a.wav"); err == nil {
		t.Fatalf("expected first load to fail")
	}
	if _, err := l.Transcribe(context.Background(), "a.wav"); err != nil {
		t.Fatalf("expected second load to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWhisperHTTPTranscribe(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("model") != "small" || r.FormValue("beam_size") != "5" || r.FormValue("vad_filter") != "true" {
			t.Errorf("unexpected form values: %v", r.MultipartForm.Value)
		}
		if r.FormValue("language") != "" {
			t.Errorf("language must be auto-detected")
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if string(data) != "RIFF" {
				t.Errorf("unexpected file content %q", data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"ignored","language":"arabic","segments":[{"text":" ما هي "},{"text":"حقوقي؟ "}]}`))
	}))
	defer srv.Close()

	wh := NewWhisperHTTP(srv.URL+"/v1/", "small", "key")
	res, err := wh.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "ما هي حقوقي؟" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Language != "ar" {
		t.Fatalf("expected language ar, got %q", res.Language)
	}
}

func TestWhisperHTTPServerError(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "clip.wav")
	_ = os.WriteFile(audio, []byte("RIFF"), 0o600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewWhisperHTTP(srv.URL, "small", "").Transcribe(context.Background(), audio); err == nil {
		t.Fatalf("expected error on 503")
	}
}

func TestParseWhisperCPPOutput(t *testing.T) {
	res, err := parseWhisperCPPOutput([]byte(`{"result":{"language":"en"},"transcription":[{"text":" Hello"},{"text":" world "}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Hello world" || res.Language != "en" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := parseWhisperCPPOutput([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

type whisperCLIRunner struct {
	output string
}

func (r *whisperCLIRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	for i, a := range args {
		if a == "-of" && i+1 < len(args) {
			return nil, os.WriteFile(args[i+1]+".json", []byte(r.output), 0o600)
		}
	}
	return nil, errors.New("missing -of")
}

func TestWhisperCLITranscribe(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper-cli")
	model := filepath.Join(dir, "ggml-small.bin")
	_ = os.WriteFile(bin, []byte("#!/bin/sh"), 0o700)
	_ = os.WriteFile(model, []byte("model"), 0o600)

	s, _ := newTestScratch(t)
	runner := &whisperCLIRunner{output: `{"result":{"language":"hi"},"transcription":[{"text":"नमस्ते"}]}`}
	w, err := newWhisperCLI(bin, model, s, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := w.Transcribe(context.Background(), "clip.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "नमस्ते" || res.Language != "hi" {
		t.Fatalf("unexpected result %+v", res)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected json output cleaned up, got %d files", len(entries))
	}
}

func TestNewWhisperCLIRequiresModel(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper-cli")
	_ = os.WriteFile(bin, []byte("#!/bin/sh"), 0o700)
	s, _ := newTestScratch(t)
	if _, err := newWhisperCLI(bin, filepath.Join(dir, "missing.bin"), s, &whisperCLIRunner{}); err == nil {
		t.Fatalf("expected error for missing model")
	}
}
