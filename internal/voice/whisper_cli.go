package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// WhisperCLI transcribe con el binario de whisper.cpp. Necesita WAV a 16 kHz,
// por eso el Service normaliza antes.
type WhisperCLI struct {
	binaryPath string
	modelPath  string
	scratch    *Scratch
	runner     CommandRunner
}

// NewWhisperCLI verifica que el binario y el modelo existan.
func NewWhisperCLI(binary, modelPath string, scratch *Scratch) (*WhisperCLI, error) {
	return newWhisperCLI(binary, modelPath, scratch, execRunner{})
}

func newWhisperCLI(binary, modelPath string, scratch *Scratch, runner CommandRunner) (*WhisperCLI, error) {
	binaryPath := findWhisperBinary(binary)
	if binaryPath == "" {
		return nil, fmt.Errorf("whisper binary not found")
	}
	if modelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	return &WhisperCLI{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		scratch:    scratch,
		runner:     runner,
	}, nil
}

func findWhisperBinary(preferred string) string {
	candidates := []string{preferred, "whisper-cli", "whisper"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if filepath.IsAbs(c) {
			if _, err := os.Stat(c); err == nil {
				return c
			}
			continue
		}
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}

type whisperCPPOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	outBase := w.scratch.Path("")
	jsonPath := outBase + ".json"
	defer w.scratch.Remove(jsonPath)

	args := []string{
		"-m", w.modelPath,
		"-l", "auto",
		"-bs", "5",
		"-np",
		"-oj",
		"-of", outBase,
		audioPath,
	}
	if stderr, err := w.runner.Run(ctx, w.binaryPath, args...); err != nil {
		return Result{}, fmt.Errorf("whisper failed: %w, stderr: %s", err, lastLines(string(stderr), 5))
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWhisperCPPOutput(data)
}

func parseWhisperCPPOutput(data []byte) (Result, error) {
	var out whisperCPPOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("decode whisper output: %w", err)
	}
	segments := make([]string, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		segments = append(segments, s.Text)
	}
	return Result{
		Text:     joinSegments(segments),
		Language: normalizeLanguage(out.Result.Language),
	}, nil
}
