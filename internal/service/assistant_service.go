package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/llm"
	"tabayyan/internal/metrics"
)

// SystemInstruction define el rol y las reglas de respuesta del asistente.
const SystemInstruction = "أنت 'تبيّن'، مساعد قانوني ذكي ومحترف للمواطنين في السعودية.\n\n" +
	"قواعد الرد:\n" +
	"1. إجابات واضحة ومتوازنة (4 إلى 6 جمل كحد أقصى).\n" +
	"2. تجنب التفاصيل الإضافية وركز على الإجابة المباشرة فقط.\n" +
	"3. استخدم تنسيقاً بسيطاً: نقطة أو اثنتان، وعنوان واحد فقط عند الحاجة.\n" +
	"4. ابدأ بالمعلومة الأهم مباشرة بدون مقدمات.\n\n" +
	"الغرامات والعقوبات: اذكر المبلغ والسبب فقط، مثال: 'الغرامة: 300 ريال لاستخدام الجوال أثناء القيادة'.\n\n" +
	"معايير عامة: معلومات سعودية فقط، بدون استشارات شخصية، مهذب ومباشر، رموز تعبيرية قليلة جداً.\n"

// ApologyMessage se devuelve cuando el LLM falla.
const ApologyMessage = "عذراً، حدث خطأ أثناء الاتصال بالخادم. يرجى المحاولة مرة أخرى لاحقاً."

var ErrEmptyMessage = errors.New("no message provided")

// AssistantService genera respuestas legales con el LLM y mantiene el historial de la sesion.
type AssistantService struct {
	llmClient    llm.LLMClient
	history      HistoryStore
	logger       *zap.Logger
	metrics      *metrics.Metrics
	contextTurns int
}

// NewAssistantService crea el servicio. contextTurns > 0 agrega los ultimos
// turnos del historial al prompt; con 0 solo se envia la pregunta actual.
func NewAssistantService(llmClient llm.LLMClient, history HistoryStore, logger *zap.Logger, m *metrics.Metrics, contextTurns int) *AssistantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if contextTurns < 0 {
		contextTurns = 0
	}
	return &AssistantService{
		llmClient:    llmClient,
		history:      history,
		logger:       logger,
		metrics:      m,
		contextTurns: contextTurns,
	}
}

// Ask responde un mensaje de chat y guarda ambos turnos en el historial.
// Un fallo del LLM no es un error: se responde con ApologyMessage.
func (s *AssistantService) Ask(ctx context.Context, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	var past []domain.HistoryEntry
	if s.contextTurns > 0 && s.history != nil && sessionID != "" {
		entries, err := s.history.List(ctx, sessionID)
		if err != nil {
			s.logger.Warn("load history failed", zap.String("session_id", sessionID), zap.Error(err))
		} else {
			past = lastTurns(entries, s.contextTurns)
		}
	}

	reply := s.generate(ctx, buildMessages(past, message))

	if s.history != nil && sessionID != "" {
		err := s.history.Append(ctx, sessionID,
			domain.HistoryEntry{Role: domain.RoleUser, Content: message},
			domain.HistoryEntry{Role: domain.RoleBot, Content: reply},
		)
		if err != nil {
			s.logger.Warn("append history failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return reply, nil
}

// Answer responde sin leer ni escribir historial. Lo usa el flujo de voz.
func (s *AssistantService) Answer(ctx context.Context, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ApologyMessage
	}
	return s.generate(ctx, buildMessages(nil, prompt))
}

func (s *AssistantService) generate(ctx context.Context, messages []llm.Message) string {
	if s.llmClient == nil {
		s.countLLM("error")
		return ApologyMessage
	}
	reply, err := s.llmClient.Generate(ctx, messages)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		s.logger.Error("llm generate failed", zap.Error(err))
		s.countLLM("error")
		return ApologyMessage
	}
	s.countLLM("ok")
	return strings.TrimSpace(reply)
}

func (s *AssistantService) countLLM(outcome string) {
	if s.metrics != nil {
		s.metrics.LLMRequests.WithLabelValues(outcome).Inc()
	}
}

func buildMessages(past []domain.HistoryEntry, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(past)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemInstruction})
	for _, e := range past {
		role := llm.RoleUser
		if e.Role == domain.RoleBot {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: e.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

// lastTurns devuelve las ultimas n parejas usuario/bot.
func lastTurns(entries []domain.HistoryEntry, n int) []domain.HistoryEntry {
	limit := n * 2
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	// Empezar siempre por un turno de usuario.
	for len(entries) > 0 && entries[0].Role != domain.RoleUser {
		entries = entries[1:]
	}
	return entries
}
