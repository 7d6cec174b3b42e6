package service

import (
	"context"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/llm"
	"tabayyan/internal/repository"
)

// EmbeddingDims debe coincidir con la columna faqs.embedding.
const EmbeddingDims = 768

const (
	defaultFAQResults = 5
	indexBatchSize    = 50
)

// FAQService lista y busca preguntas frecuentes. La busqueda usa embeddings
// con pgvector y cae a busqueda por texto si no hay embeddings disponibles.
type FAQService struct {
	repo      repository.FAQRepository
	llmClient llm.LLMClient
	logger    *zap.Logger
}

func NewFAQService(repo repository.FAQRepository, llmClient llm.LLMClient, logger *zap.Logger) *FAQService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FAQService{repo: repo, llmClient: llmClient, logger: logger}
}

func (s *FAQService) List(ctx context.Context) ([]domain.FAQ, error) {
	return s.repo.List(ctx)
}

func (s *FAQService) Search(ctx context.Context, query string, k int) ([]domain.FAQ, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.FAQ{}, nil
	}
	if k <= 0 || k > 20 {
		k = defaultFAQResults
	}

	if s.llmClient != nil {
		emb, err := s.llmClient.CreateEmbedding(ctx, query)
		if err == nil && len(emb) == EmbeddingDims {
			faqs, err := s.repo.Search(ctx, pgvector.NewVector(emb), k)
			if err == nil && len(faqs) > 0 {
				return faqs, nil
			}
			if err != nil {
				s.logger.Warn("faq vector search failed", zap.Error(err))
			}
		} else if err != nil {
			s.logger.Warn("faq query embedding failed", zap.Error(err))
		}
	}

	faqs, err := s.repo.SearchText(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("faq text search: %w", err)
	}
	return faqs, nil
}

// IndexMissing calcula embeddings para las FAQs que aun no tienen, por lotes,
// hasta agotarlas. Devuelve cuantas indexo.
func (s *FAQService) IndexMissing(ctx context.Context) (int, error) {
	if s.llmClient == nil {
		return 0, nil
	}
	indexed := 0
	for {
		faqs, err := s.repo.ListMissingEmbeddings(ctx, indexBatchSize)
		if err != nil {
			return indexed, fmt.Errorf("list faqs without embedding: %w", err)
		}
		if len(faqs) == 0 {
			return indexed, nil
		}
		progressed := 0
		for _, f := range faqs {
			emb, err := s.llmClient.CreateEmbedding(ctx, f.Question+"\n"+f.Answer)
			if err != nil {
				return indexed, fmt.Errorf("embed faq %s: %w", f.ID, err)
			}
			if len(emb) != EmbeddingDims {
				s.logger.Warn("unexpected embedding size, skipping",
					zap.String("faq_id", f.ID),
					zap.Int("dims", len(emb)),
				)
				continue
			}
			if err := s.repo.UpdateEmbedding(ctx, f.ID, pgvector.NewVector(emb)); err != nil {
				return indexed, fmt.Errorf("update faq embedding %s: %w", f.ID, err)
			}
			indexed++
			progressed++
		}
		// Un lote sin avances volveria a listar las mismas filas.
		if progressed == 0 {
			return indexed, nil
		}
	}
}
