package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/metrics"
)

var ErrEmptyText = errors.New("no text provided")

const (
	StageUpload     = "upload"
	StageNormalize  = "normalize"
	StageTranscribe = "transcribe"
	StageSynthesize = "synthesize"
	StageSpeed      = "speed"
)

// Job agrupa los archivos scratch de una solicitud para borrarlos juntos.
type Job struct {
	mu    sync.Mutex
	files []string
}

func (j *Job) add(path string) {
	if path == "" {
		return
	}
	j.mu.Lock()
	j.files = append(j.files, path)
	j.mu.Unlock()
}

// Files devuelve las rutas registradas en el job.
func (j *Job) Files() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.files))
	copy(out, j.files)
	return out
}

// Speech es el audio final de una sintesis.
type Speech struct {
	Path     string
	Duration time.Duration
	SpedUp   bool
}

// Service orquesta el pipeline de voz: upload, normalizacion, transcripcion,
// sintesis y limpieza.
type Service struct {
	scratch        *Scratch
	transcoder     Transcoder
	transcriber    Transcriber
	synthesizer    Synthesizer
	metrics        *metrics.Metrics
	logger         *zap.Logger
	maxUploadBytes int64
}

func NewService(
	scratch *Scratch,
	transcoder Transcoder,
	transcriber Transcriber,
	synthesizer Synthesizer,
	m *metrics.Metrics,
	logger *zap.Logger,
	maxUploadBytes int64,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &Service{
		scratch:        scratch,
		transcoder:     transcoder,
		transcriber:    transcriber,
		synthesizer:    synthesizer,
		metrics:        m,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *Service) NewJob() *Job { return &Job{} }

// Cleanup borra todos los archivos del job.
func (s *Service) Cleanup(job *Job) {
	if job == nil {
		return
	}
	s.scratch.Remove(job.Files()...)
}

// SaveUpload guarda el audio subido dentro del job.
func (s *Service) SaveUpload(job *Job, src io.Reader, filename string) (string, error) {
	start := time.Now()
	path, _, err := s.scratch.SaveUpload(src, filename, s.maxUploadBytes)
	s.observe(StageUpload, start, err)
	if err != nil {
		return "", err
	}
	job.add(path)
	return path, nil
}

// Transcribe normaliza el audio a WAV si hace falta y lo transcribe.
// Si la conversion falla se transcribe el archivo original.
func (s *Service) Transcribe(ctx context.Context, job *Job, audioPath string) (domain.Transcript, error) {
	input := s.normalize(ctx, job, audioPath)

	start := time.Now()
	res, err := s.transcriber.Transcribe(ctx, input)
	s.observe(StageTranscribe, start, err)
	if err != nil {
		s.logger.Error("transcription failed", zap.String("path", input), zap.Error(err))
		return domain.Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	t := domain.Transcript{
		Text:     strings.TrimSpace(res.Text),
		Code:     res.Language,
		Language: domain.LanguageFromWhisper(res.Language),
	}
	s.logger.Info("transcription complete",
		zap.String("language_code", t.Code),
		zap.String("language", t.Language),
		zap.Int("chars", len([]rune(t.Text))),
	)
	return t, nil
}

func (s *Service) normalize(ctx context.Context, job *Job, audioPath string) string {
	if isWAV(audioPath) {
		return audioPath
	}
	wavPath := s.scratch.Path(".wav")
	start := time.Now()
	err := s.transcoder.ConvertToWAV(ctx, audioPath, wavPath)
	s.observe(StageNormalize, start, err)
	if err != nil {
		s.logger.Warn("audio conversion failed, using original file",
			zap.String("path", audioPath),
			zap.Error(err),
		)
		s.metrics.Fallbacks.WithLabelValues(StageNormalize).Inc()
		s.scratch.Remove(wavPath)
		return audioPath
	}
	s.scratch.Track(wavPath)
	job.add(wavPath)
	return wavPath
}

// GenerateSpeech sintetiza text en el idioma indicado (nombre del frontend).
// Con speedFactor distinto de 1 se acelera el audio; si eso falla se devuelve
// el audio sin modificar.
func (s *Service) GenerateSpeech(ctx context.Context, job *Job, text, language string, speedFactor float64) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	clean := CleanTextForTTS(text)
	if clean == "" {
		clean = strings.TrimSpace(text)
	}
	code := domain.LanguageCode(language)

	outPath := s.scratch.Path(".mp3")
	start := time.Now()
	err := s.synthesize(ctx, outPath, clean, code)
	s.observe(StageSynthesize, start, err)
	if err != nil {
		s.scratch.Remove(outPath)
		s.logger.Error("speech synthesis failed", zap.String("lang", code), zap.Error(err))
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	job.add(outPath)

	speech := &Speech{Path: outPath}
	if speedFactor > 0 && speedFactor != 1.0 {
		start = time.Now()
		fast, err := s.transcoder.ChangeSpeed(ctx, outPath, speedFactor)
		s.observe(StageSpeed, start, err)
		if err != nil {
			s.logger.Warn("speed change failed, using original audio",
				zap.Float64("factor", speedFactor),
				zap.Error(err),
			)
			s.metrics.Fallbacks.WithLabelValues(StageSpeed).Inc()
		} else {
			job.add(fast)
			speech.Path = fast
			speech.SpedUp = true
		}
	}

	if d, err := MP3Duration(speech.Path); err == nil {
		speech.Duration = d
		s.metrics.AudioSeconds.Observe(d.Seconds())
	} else {
		s.logger.Debug("mp3 duration probe failed", zap.Error(err))
	}

	s.logger.Info("speech generated",
		zap.String("lang", code),
		zap.Bool("sped_up", speech.SpedUp),
		zap.Duration("duration", speech.Duration),
	)
	return speech, nil
}

func (s *Service) synthesize(ctx context.Context, outPath, text, langCode string) error {
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create mp3 file: %w", err)
	}
	s.scratch.Track(outPath)
	err = s.synthesizer.Synthesize(ctx, text, langCode, f)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("close mp3 file: %w", closeErr)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("stat mp3 file: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("synthesizer returned empty audio")
	}
	return nil
}

func (s *Service) observe(stage string, start time.Time, err error) {
	s.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.StageFailures.WithLabelValues(stage).Inc()
	}
}
