package search

import (
	"context"

	"github.com/docuquery/policy-search/domain"
)

// Service composes retrieval and answer generation into one query flow.
type Service struct {
	retrieval  *Retrieval
	summarizer domain.Summarizer
}

func ProvideService(retrieval *Retrieval, summarizer domain.Summarizer) *Service {
	return &Service{retrieval: retrieval, summarizer: summarizer}
}

// Answer retrieves relevant chunks and generates a grounded answer from
// them. The hits used for grounding are returned alongside the answer.
func (s *Service) Answer(ctx context.Context, tenant, query string, opts Options) (domain.Answer, []domain.SearchResult, error) {
	results, err := s.retrieval.Search(ctx, tenant, query, opts)
	if err != nil {
		return domain.Answer{}, nil, err
	}

	answer, err := s.summarizer.Summarize(ctx, query, results)
	if err != nil {
		return domain.Answer{}, nil, err
	}
	return answer, results, nil
}
