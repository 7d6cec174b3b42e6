package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CommandRunner ejecuta un binario externo y devuelve su stderr.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// Transcoder convierte audio entre formatos.
type Transcoder interface {
	ConvertToWAV(ctx context.Context, inputPath, outputPath string) error
	ChangeSpeed(ctx context.Context, inputPath string, factor float64) (string, error)
}

// TranscodeError conserva el stderr de ffmpeg para diagnostico.
type TranscodeError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s failed: %v: %s", e.Op, e.Err, e.Stderr)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

var ErrFFmpegNotFound = errors.New("ffmpeg not found, install it from https://ffmpeg.org/download.html")

// FFmpeg implementa Transcoder invocando el binario ffmpeg.
type FFmpeg struct {
	binary  string
	scratch *Scratch
	runner  CommandRunner
	logger  *zap.Logger
}

func NewFFmpeg(binary string, scratch *Scratch, logger *zap.Logger) *FFmpeg {
	return NewFFmpegWithRunner(binary, scratch, execRunner{}, logger)
}

func NewFFmpegWithRunner(binary string, scratch *Scratch, runner CommandRunner, logger *zap.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{
		binary:  binary,
		scratch: scratch,
		runner:  runner,
		logger:  logger,
	}
}

// ConvertToWAV produce WAV mono a 16 kHz, el formato que espera Whisper.
func (f *FFmpeg) ConvertToWAV(ctx context.Context, inputPath, outputPath string) error {
	f.logger.Info("converting audio to wav",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
	)
	return f.run(ctx, "convert",
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		outputPath,
	)
}

// ChangeSpeed aplica atempo y devuelve la ruta de un MP3 nuevo en scratch.
// El archivo de entrada no se modifica.
func (f *FFmpeg) ChangeSpeed(ctx context.Context, inputPath string, factor float64) (string, error) {
	filter, err := atempoFilter(factor)
	if err != nil {
		return "", err
	}
	outputPath := f.scratch.Path(".mp3")
	f.logger.Info("changing audio speed",
		zap.String("input", inputPath),
		zap.Float64("factor", factor),
	)
	if err := f.run(ctx, "speed", "-y", "-i", inputPath, "-filter:a", filter, "-vn", outputPath); err != nil {
		f.scratch.Remove(outputPath)
		return "", err
	}
	f.scratch.Track(outputPath)
	return outputPath, nil
}

func (f *FFmpeg) run(ctx context.Context, op string, args ...string) error {
	stderr, err := f.runner.Run(ctx, f.binary, args...)
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &TranscodeError{Op: op, Err: ErrFFmpegNotFound}
	}
	return &TranscodeError{Op: op, Stderr: lastLines(string(stderr), 5), Err: err}
}

// atempoFilter encadena filtros atempo cuando el factor sale del rango [0.5, 2.0]
// que aceptan todas las versiones de ffmpeg.
func atempoFilter(factor float64) (string, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return "", fmt.Errorf("invalid speed factor %v", factor)
	}
	var parts []string
	for factor > 2.0 {
		parts = append(parts, "atempo=2")
		factor /= 2.0
	}
	for factor < 0.5 {
		parts = append(parts, "atempo=0.5")
		factor /= 0.5
	}
	parts = append(parts, "atempo="+strconv.FormatFloat(factor, 'f', -1, 64))
	return strings.Join(parts, ","), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// isWAV indica si la ruta ya tiene extension .wav.
func isWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}
