package voice

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tabayyan/internal/config"
	"tabayyan/internal/metrics"
)

// NewServiceFromConfig arma el pipeline completo: scratch, ffmpeg, Whisper
// (HTTP o CLI, cargado en el primer uso) y el proveedor TTS configurado.
func NewServiceFromConfig(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Service, error) {
	scratch, err := NewScratch(cfg.ScratchDir, logger, m)
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}

	transcriber, err := transcriberFromConfig(cfg, scratch, logger)
	if err != nil {
		return nil, err
	}
	synthesizer, err := synthesizerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewService(
		scratch,
		NewFFmpeg(cfg.FFmpegPath, scratch, logger),
		transcriber,
		synthesizer,
		m,
		logger,
		cfg.MaxUploadBytes(),
	), nil
}

func transcriberFromConfig(cfg *config.Config, scratch *Scratch, logger *zap.Logger) (Transcriber, error) {
	switch strings.ToLower(cfg.WhisperMode) {
	case "", "http":
		return NewLazy(func() (Transcriber, error) {
			logger.Info("using whisper http server", zap.String("url", cfg.WhisperURL), zap.String("model", cfg.WhisperModel))
			return NewWhisperHTTP(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperKey), nil
		}), nil
	case "cli":
		return NewLazy(func() (Transcriber, error) {
			logger.Info("loading whisper.cpp model", zap.String("model", cfg.WhisperPath))
			return NewWhisperCLI(cfg.WhisperBin, cfg.WhisperPath, scratch)
		}), nil
	default:
		return nil, fmt.Errorf("unknown WHISPER_MODE %q", cfg.WhisperMode)
	}
}

func synthesizerFromConfig(cfg *config.Config) (Synthesizer, error) {
	switch strings.ToLower(cfg.TTSProvider) {
	case "", "google":
		return NewGoogleTTS(cfg.TTSBaseURL), nil
	case "openai":
		return NewOpenAITTS(cfg.TTSBaseURL, cfg.TTSAPIKey, "", cfg.TTSVoice), nil
	default:
		return nil, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.TTSProvider)
	}
}
