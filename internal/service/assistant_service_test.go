package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/llm"
	"tabayyan/internal/metrics"
)

func TestAssistantServiceAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("sends system instruction and stores both turns", func(t *testing.T) {
		mock := &llm.MockClient{Response: "  الغرامة: 300 ريال  "}
		history := NewMemoryHistoryStore(10, time.Hour)
		svc := NewAssistantService(mock, history, zap.NewNop(), nil, 0)

		reply, err := svc.Ask(ctx, "sid", " ما غرامة الجوال؟ ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "الغرامة: 300 ريال" {
			t.Fatalf("unexpected reply %q", reply)
		}
		msgs := mock.Calls[0]
		if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[0].Content != SystemInstruction {
			t.Fatalf("expected system + user messages, got %+v", msgs)
		}
		if msgs[1].Content != "ما غرامة الجوال؟" {
			t.Fatalf("unexpected user content %q", msgs[1].Content)
		}

		entries, _ := history.List(ctx, "sid")
		if len(entries) != 2 || entries[0].Role != domain.RoleUser || entries[1].Role != domain.RoleBot {
			t.Fatalf("unexpected history %+v", entries)
		}
	})

	t.Run("llm failure returns apology", func(t *testing.T) {
		m := metrics.NewNopMetrics()
		mock := &llm.MockClient{Err: errors.New("503")}
		history := NewMemoryHistoryStore(10, time.Hour)
		svc := NewAssistantService(mock, history, zap.NewNop(), m, 0)

		reply, err := svc.Ask(ctx, "sid", "سؤال")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if reply != ApologyMessage {
			t.Fatalf("expected apology, got %q", reply)
		}
		entries, _ := history.List(ctx, "sid")
		if len(entries) != 2 || entries[1].Content != ApologyMessage {
			t.Fatalf("expected apology stored as bot turn, got %+v", entries)
		}
		if got := testutil.ToFloat64(m.LLMRequests.WithLabelValues("error")); got != 1 {
			t.Fatalf("expected llm error counted, got %v", got)
		}
	})

	t.Run("empty completion returns apology", func(t *testing.T) {
		svc := NewAssistantService(&llm.MockClient{Response: "   "}, nil, nil, nil, 0)
		reply, _ := svc.Ask(ctx, "sid", "سؤال")
		if reply != ApologyMessage {
			t.Fatalf("expected apology, got %q", reply)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		mock := &llm.MockClient{Response: "x"}
		svc := NewAssistantService(mock, nil, nil, nil, 0)
		if _, err := svc.Ask(ctx, "sid", "  "); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage, got %v", err)
		}
		if len(mock.Calls) != 0 {
			t.Fatalf("llm must not be called")
		}
	})

	t.Run("context turns", func(t *testing.T) {
		history := NewMemoryHistoryStore(10, time.Hour)
		_ = history.Append(ctx, "sid",
			domain.HistoryEntry{Role: domain.RoleUser, Content: "q1"},
			domain.HistoryEntry{Role: domain.RoleBot, Content: "a1"},
			domain.HistoryEntry{Role: domain.RoleUser, Content: "q2"},
			domain.HistoryEntry{Role: domain.RoleBot, Content: "a2"},
		)
		mock := &llm.MockClient{Response: "a3"}
		svc := NewAssistantService(mock, history, nil, nil, 1)
		if _, err := svc.Ask(ctx, "sid", "q3"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		msgs := mock.Calls[0]
		if len(msgs) != 4 {
			t.Fatalf("expected system + 1 turn + question, got %d", len(msgs))
		}
		if msgs[1].Content != "q2" || msgs[2].Role != llm.RoleAssistant || msgs[2].Content != "a2" {
			t.Fatalf("unexpected context messages %+v", msgs)
		}
	})
}

func TestAssistantServiceAnswerSkipsHistory(t *testing.T) {
	history := NewMemoryHistoryStore(10, time.Hour)
	svc := NewAssistantService(&llm.MockClient{Response: "جواب"}, history, nil, nil, 3)
	if got := svc.Answer(context.Background(), "سؤال صوتي"); got != "جواب" {
		t.Fatalf("unexpected answer %q", got)
	}
	entries, _ := history.List(context.Background(), "sid")
	if len(entries) != 0 {
		t.Fatalf("voice answers must not touch history")
	}
}

func TestLastTurns(t *testing.T) {
	entries := []domain.HistoryEntry{
		{Role: domain.RoleBot, Content: "orphan"},
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleBot, Content: "a1"},
	}
	got := lastTurns(entries, 5)
	if len(got) != 2 || got[0].Content != "q1" {
		t.Fatalf("expected leading bot turn dropped, got %+v", got)
	}
}
