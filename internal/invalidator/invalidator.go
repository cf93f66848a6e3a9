// Package invalidator consumes document change events and evicts the
// retrieval cache entries they stale. A document change can shift keyword
// rankings for any query, so updates flush the search sub-step namespaces
// and the full-result namespace rather than guessing affected queries.
package invalidator

import (
	"context"
	"log/slog"
	"time"

	"github.com/defenda/legal-retrieval/internal/retrieval/cache"
	"github.com/defenda/legal-retrieval/pkg/kafka"
	"github.com/defenda/legal-retrieval/pkg/resilience"
)

// evictionTimeout bounds one eviction pass so a hung Redis SCAN cannot
// stall the consumer group.
const evictionTimeout = 10 * time.Second

// Event types carried on the document events topic.
const (
	EventDocumentUpdated = "document_updated"
	EventDocumentDeleted = "document_deleted"
	EventScoresUpdated   = "scores_updated"
)

// DocumentEvent is the payload published when a document changes.
type DocumentEvent struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
}

// Invalidator evicts cache entries in response to document events.
type Invalidator struct {
	cached *cache.Cached
	logger *slog.Logger
}

func New(cached *cache.Cached) *Invalidator {
	return &Invalidator{
		cached: cached,
		logger: slog.Default().With("component", "cache-invalidator"),
	}
}

// Handle is the kafka.MessageHandler for the document events topic.
// Unknown event types are acknowledged and ignored so a schema addition
// upstream never wedges the consumer group.
func (i *Invalidator) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[DocumentEvent](value)
	if err != nil {
		i.logger.Warn("undecodable document event", "key", string(key), "error", err)
		return nil
	}

	switch event.Type {
	case EventDocumentUpdated, EventDocumentDeleted:
		var removed int64
		err := resilience.WithTimeout(ctx, evictionTimeout, "cache-eviction", func(ctx context.Context) error {
			removed = i.cached.InvalidateQuery(ctx, "")
			removed += i.cached.InvalidateSearchCache(ctx)
			return nil
		})
		if err != nil {
			i.logger.Warn("cache eviction timed out", "event", event.Type, "error", err)
			return nil
		}
		i.logger.Info("cache invalidated",
			"event", event.Type,
			"document_id", event.DocumentID,
			"removed", removed,
		)
	case EventScoresUpdated:
		// Quality scores feed the composite ranking but not the sub-step
		// caches, so only full results go.
		var removed int64
		err := resilience.WithTimeout(ctx, evictionTimeout, "cache-eviction", func(ctx context.Context) error {
			removed = i.cached.InvalidateQuery(ctx, "")
			return nil
		})
		if err != nil {
			i.logger.Warn("cache eviction timed out", "event", event.Type, "error", err)
			return nil
		}
		i.logger.Info("query cache invalidated",
			"event", event.Type,
			"document_id", event.DocumentID,
			"removed", removed,
		)
	default:
		i.logger.Debug("ignoring document event", "event", event.Type)
	}
	return nil
}
