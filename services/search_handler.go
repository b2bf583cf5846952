package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/docuquery/policy-search/domain"
	"github.com/docuquery/policy-search/search"
	"github.com/labstack/echo/v4"
)

// Searcher answers queries over a tenant's documents. Satisfied by
// *search.Service.
type Searcher interface {
	Answer(ctx context.Context, tenant, query string, opts search.Options) (domain.Answer, []domain.SearchResult, error)
}

// SearchHandler serves RAG queries.
type SearchHandler struct {
	service Searcher
}

func ProvideSearchHandler(service Searcher) *SearchHandler {
	return &SearchHandler{service: service}
}

type searchRequest struct {
	Query          string            `json:"query"`
	K              int               `json:"k,omitempty"`
	SearchType     string            `json:"search_type,omitempty"`
	MetadataFilter map[string]string `json:"metadata_filter,omitempty"`
	ScoreThreshold float64           `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Query             string           `json:"query"`
	AIResponse        aiResponse       `json:"ai_response"`
	RelevantDocuments []relevantResult `json:"relevant_documents"`
}

type aiResponse struct {
	Answer   string     `json:"answer"`
	Metadata aiMetadata `json:"metadata"`
}

type aiMetadata struct {
	NumDocuments int      `json:"num_documents"`
	Sources      []string `json:"sources"`
}

type relevantResult struct {
	Content         string            `json:"content"`
	Metadata        map[string]string `json:"metadata"`
	SimilarityScore float64           `json:"similarity_score"`
}

func (h *SearchHandler) Search(c echo.Context) error {
	tenant, err := requireTenant(c)
	if err != nil {
		return err
	}

	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	mode, err := parseMode(req.SearchType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	searchRequestsTotal.WithLabelValues(string(mode)).Inc()

	answer, results, err := h.service.Answer(c.Request().Context(), tenant, req.Query, search.Options{
		K:              req.K,
		Mode:           mode,
		Filters:        req.MetadataFilter,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		return err
	}

	docs := make([]relevantResult, 0, len(results))
	for _, res := range results {
		docs = append(docs, relevantResult{
			Content:         res.Content,
			Metadata:        res.Metadata,
			SimilarityScore: res.Score,
		})
	}

	return c.JSON(http.StatusOK, searchResponse{
		Query: req.Query,
		AIResponse: aiResponse{
			Answer: answer.Text,
			Metadata: aiMetadata{
				NumDocuments: answer.NumDocuments,
				Sources:      answer.Sources,
			},
		},
		RelevantDocuments: docs,
	})
}

func parseMode(searchType string) (domain.SearchMode, error) {
	switch searchType {
	case "", string(domain.SearchSimilarity):
		return domain.SearchSimilarity, nil
	case string(domain.SearchThreshold):
		return domain.SearchThreshold, nil
	case string(domain.SearchMMR):
		return domain.SearchMMR, nil
	default:
		return "", fmt.Errorf("unknown search_type: %s", searchType)
	}
}
