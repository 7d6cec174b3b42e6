package voice

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabayyan/internal/metrics"
)

// AllowedExtensions son los formatos de audio aceptados en uploads.
var AllowedExtensions = map[string]struct{}{
	"webm": {},
	"wav":  {},
	"mp3":  {},
	"m4a":  {},
	"ogg":  {},
}

var (
	ErrMissingFilename  = errors.New("empty filename")
	ErrUnsupportedAudio = errors.New("invalid file format")
	ErrEmptyUpload      = errors.New("uploaded file is empty")
	ErrUploadTooLarge   = errors.New("uploaded file is too large")
)

// AllowedFile replica la regla del formulario: debe haber un punto y la
// extension final, sin distinguir mayusculas, debe estar permitida.
func AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	_, ok := AllowedExtensions[strings.ToLower(filename[idx+1:])]
	return ok
}

// Scratch administra archivos temporales con nombres a prueba de colisiones.
type Scratch struct {
	dir     string
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	tracked map[string]struct{}
}

func NewScratch(dir string, logger *zap.Logger, m *metrics.Metrics) (*Scratch, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scratch{
		dir:     dir,
		logger:  logger,
		metrics: m,
		tracked: make(map[string]struct{}),
	}, nil
}

func (s *Scratch) Dir() string { return s.dir }

// Path devuelve una ruta nueva dentro del directorio scratch. No crea el archivo.
func (s *Scratch) Path(ext string) string {
	return filepath.Join(s.dir, uuid.NewString()+ext)
}

// Track registra un archivo creado para que Remove actualice la metrica.
func (s *Scratch) Track(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[path]; ok {
		return
	}
	s.tracked[path] = struct{}{}
	if s.metrics != nil {
		s.metrics.ScratchFiles.Inc()
	}
}

// Remove borra los archivos indicados; rutas vacias o inexistentes se ignoran.
func (s *Scratch) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to cleanup file", zap.String("path", p), zap.Error(err))
		} else if err == nil {
			s.logger.Info("cleaned up audio file", zap.String("path", p))
		}
		s.mu.Lock()
		if _, ok := s.tracked[p]; ok {
			delete(s.tracked, p)
			if s.metrics != nil {
				s.metrics.ScratchFiles.Dec()
			}
		}
		s.mu.Unlock()
	}
}

// SaveUpload valida el nombre y copia el contenido a un archivo scratch
// "<uuid><ext>". Si el upload no tiene extension se usa ".webm".
// Devuelve la ruta y el tamaño escrito.
func (s *Scratch) SaveUpload(src io.Reader, filename string, maxBytes int64) (string, int64, error) {
	if filename == "" {
		return "", 0, ErrMissingFilename
	}
	if !AllowedFile(filename) {
		return "", 0, ErrUnsupportedAudio
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		ext = ".webm"
	}

	path := s.Path(ext)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	s.Track(path)

	reader := src
	if maxBytes > 0 {
		reader = io.LimitReader(src, maxBytes+1)
	}
	n, err := io.Copy(dst, reader)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.Remove(path)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		s.Remove(path)
		return "", 0, ErrUploadTooLarge
	}
	if n == 0 {
		s.Remove(path)
		return "", 0, ErrEmptyUpload
	}

	s.logger.Info("saved audio file", zap.String("path", path), zap.Int64("size", n))
	return path, n, nil
}
