package retrieval

import (
	"context"

	"github.com/defenda/legal-retrieval/internal/legaldoc"
)

// KnowledgeBaseStats summarises the indexed corpus for the admin surface.
type KnowledgeBaseStats struct {
	TotalDocuments int            `json:"total_documents"`
	ByType         map[string]int `json:"by_type"`
	ByJurisdiction map[string]int `json:"by_jurisdiction"`
	AverageQuality float64        `json:"average_quality"`
	RecentCount    int            `json:"recent_count"`
	RecentRatio    float64        `json:"recent_ratio"`
}

// Stats reports corpus composition from the document source.
func (e *Engine) Stats(ctx context.Context) (KnowledgeBaseStats, error) {
	stats, err := e.docs.Stats(ctx)
	if err != nil {
		return KnowledgeBaseStats{}, err
	}
	return fromStoreStats(stats), nil
}

func fromStoreStats(s legaldoc.StoreStats) KnowledgeBaseStats {
	kb := KnowledgeBaseStats{
		TotalDocuments: s.TotalDocuments,
		ByType:         s.ByType,
		ByJurisdiction: s.ByJurisdiction,
		AverageQuality: s.AvgQuality,
		RecentCount:    s.RecentCount,
	}
	if s.TotalDocuments > 0 {
		kb.RecentRatio = float64(s.RecentCount) / float64(s.TotalDocuments)
	}
	return kb
}
