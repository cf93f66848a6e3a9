package legaldoc

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/defenda/legal-retrieval/pkg/errors"
	"github.com/defenda/legal-retrieval/pkg/postgres"
	"github.com/lib/pq"
)

// Store provides read access to legal documents and their case-outcome links,
// plus write access limited to the four score columns.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store backed by the given Postgres client.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

const documentColumns = `
	id, title, extracted_text, source, source_url, document_type,
	jurisdiction, published_at, retrieved_at,
	quality_score, legal_relevance, freshness_score, authority_score`

// All returns every document in the corpus. Used by the keyword search path,
// which scores stored text directly.
func (s *Store) All(ctx context.Context) ([]Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM legal_documents`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %v", errors.ErrDocumentLookup, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ByIDs returns the documents with the given ids, keyed by id. Missing ids
// are simply absent from the map.
func (s *Store) ByIDs(ctx context.Context, ids []string) (map[string]Document, error) {
	if len(ids) == 0 {
		return map[string]Document{}, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM legal_documents WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching documents by id: %v", errors.ErrDocumentLookup, err)
	}
	defer rows.Close()
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	return byID, nil
}

// OutcomesByDocument returns the case outcomes linked to each of the given
// documents.
func (s *Store) OutcomesByDocument(ctx context.Context, ids []string) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT document_id, outcome FROM document_case_outcomes WHERE document_id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching case outcomes: %v", errors.ErrDocumentLookup, err)
	}
	defer rows.Close()

	outcomes := make(map[string][]string)
	for rows.Next() {
		var docID, outcome string
		if err := rows.Scan(&docID, &outcome); err != nil {
			return nil, fmt.Errorf("scanning case outcome: %w", err)
		}
		outcomes[docID] = append(outcomes[docID], outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating case outcomes: %w", err)
	}
	return outcomes, nil
}

// UpdateScores writes all four score fields for one document in a single
// transaction, so partial score updates are never visible.
func (s *Store) UpdateScores(ctx context.Context, id string, scores Scores) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE legal_documents
			 SET quality_score = $2, legal_relevance = $3,
			     freshness_score = $4, authority_score = $5
			 WHERE id = $1`,
			id, scores.Quality, scores.Relevance, scores.Freshness, scores.Authority)
		if err != nil {
			return fmt.Errorf("updating scores for %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking update result for %s: %w", id, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", errors.ErrDocumentNotFound, id)
		}
		return nil
	})
}

// Stats aggregates corpus-level counts and averages for the knowledge-base
// status endpoint. Documents published within the last year count as recent.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	stats := StoreStats{
		ByType:         make(map[string]int),
		ByJurisdiction: make(map[string]int),
	}

	row := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(quality_score), 0),
		        COUNT(*) FILTER (WHERE published_at >= $1)
		 FROM legal_documents`,
		time.Now().AddDate(-1, 0, 0))
	if err := row.Scan(&stats.TotalDocuments, &stats.AvgQuality, &stats.RecentCount); err != nil {
		return StoreStats{}, fmt.Errorf("%w: aggregating corpus stats: %v", errors.ErrDocumentLookup, err)
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT document_type, COUNT(*) FROM legal_documents GROUP BY document_type`)
	if err != nil {
		return StoreStats{}, fmt.Errorf("%w: aggregating type counts: %v", errors.ErrDocumentLookup, err)
	}
	defer rows.Close()
	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			return StoreStats{}, fmt.Errorf("scanning type count: %w", err)
		}
		stats.ByType[docType] = count
	}
	if err := rows.Err(); err != nil {
		return StoreStats{}, fmt.Errorf("iterating type counts: %w", err)
	}

	jrows, err := s.db.DB.QueryContext(ctx,
		`SELECT jurisdiction, COUNT(*) FROM legal_documents GROUP BY jurisdiction`)
	if err != nil {
		return StoreStats{}, fmt.Errorf("%w: aggregating jurisdiction counts: %v", errors.ErrDocumentLookup, err)
	}
	defer jrows.Close()
	for jrows.Next() {
		var jurisdiction string
		var count int
		if err := jrows.Scan(&jurisdiction, &count); err != nil {
			return StoreStats{}, fmt.Errorf("scanning jurisdiction count: %w", err)
		}
		stats.ByJurisdiction[jurisdiction] = count
	}
	if err := jrows.Err(); err != nil {
		return StoreStats{}, fmt.Errorf("iterating jurisdiction counts: %w", err)
	}

	return stats, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		var publishedAt sql.NullTime
		var sourceURL sql.NullString
		if err := rows.Scan(
			&d.ID, &d.Title, &d.Text, &d.Source, &sourceURL, &d.Type,
			&d.Jurisdiction, &publishedAt, &d.RetrievedAt,
			&d.QualityScore, &d.LegalRelevance, &d.FreshnessScore, &d.AuthorityScore,
		); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			d.PublishedAt = &t
		}
		if sourceURL.Valid {
			d.SourceURL = sourceURL.String
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
