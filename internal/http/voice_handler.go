package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/service"
	"tabayyan/internal/voice"
)

// VoiceHandler expone el pipeline de voz.
type VoiceHandler struct {
	logger      *zap.Logger
	voice       *voice.Service
	assistant   *service.AssistantService
	speedFactor float64
}

func NewVoiceHandler(logger *zap.Logger, voiceSvc *voice.Service, assistant *service.AssistantService, speedFactor float64) *VoiceHandler {
	return &VoiceHandler{
		logger:      logger,
		voice:       voiceSvc,
		assistant:   assistant,
		speedFactor: speedFactor,
	}
}

// VoiceToText maneja POST /voice-to-text: transcribe, responde con el LLM y
// devuelve la respuesta hablada. Si la sintesis falla responde JSON con el texto.
func (h *VoiceHandler) VoiceToText(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}
	defer file.Close()

	job := h.voice.NewJob()
	defer h.voice.Cleanup(job)

	path, err := h.voice.SaveUpload(job, file, header.Filename)
	if err != nil {
		h.uploadError(c, err)
		return
	}

	ctx := c.Request.Context()
	transcript, err := h.voice.Transcribe(ctx, job, path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transcription failed"})
		return
	}
	// Sin voz no se consulta al LLM.
	if transcript.Text == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No speech detected"})
		return
	}

	reply := h.assistant.Answer(ctx, transcript.Text)

	speech, err := h.voice.GenerateSpeech(ctx, job, reply, transcript.Language, h.speedFactor)
	if err != nil {
		h.logger.Warn("tts failed, returning text only", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"transcription":   transcript.Text,
			"language":        transcript.Language,
			"response":        reply,
			"audio_available": false,
		})
		return
	}

	c.Header("X-Transcription", base64.StdEncoding.EncodeToString([]byte(transcript.Text)))
	c.Header("X-Response-Text", base64.StdEncoding.EncodeToString([]byte(reply)))
	c.Header("X-Language", domain.HeaderLanguage(transcript.Language))
	c.Header("X-Encoding", "base64")
	h.sendAudio(c, speech)
}

// TextToSpeech maneja POST /text-to-speech.
func (h *VoiceHandler) TextToSpeech(c *gin.Context) {
	var req struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}
	if req.Language == "" {
		req.Language = domain.LanguageArabic
	}

	job := h.voice.NewJob()
	defer h.voice.Cleanup(job)

	speech, err := h.voice.GenerateSpeech(c.Request.Context(), job, req.Text, req.Language, h.speedFactor)
	if err != nil {
		if errors.Is(err, voice.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "TTS generation failed"})
		return
	}
	h.sendAudio(c, speech)
}

// sendAudio escribe el MP3 completo; la limpieza diferida corre despues.
func (h *VoiceHandler) sendAudio(c *gin.Context, speech *voice.Speech) {
	c.Header("Content-Type", "audio/mpeg")
	c.Header("Cache-Control", "no-cache, max-age=0")
	if speech.Duration > 0 {
		c.Header("X-Audio-Duration", strconv.FormatFloat(speech.Duration.Seconds(), 'f', 2, 64))
	}
	c.FileAttachment(speech.Path, "response.mp3")
}

func (h *VoiceHandler) uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, voice.ErrMissingFilename):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty filename"})
	case errors.Is(err, voice.ErrUnsupportedAudio):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file format"})
	case errors.Is(err, voice.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is empty"})
	case errors.Is(err, voice.ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Uploaded file is too large"})
	default:
		h.logger.Error("save upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save upload"})
	}
}
