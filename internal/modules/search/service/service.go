// Package search keeps the Meilisearch titles index in step with the database.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"

	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/logging"
)

// TitlesIndex is the Meilisearch index uid.
const TitlesIndex = "titles"

const reindexBatchSize = 500

// TitleSource walks every title for a full reindex.
type TitleSource interface {
	EachBatch(ctx context.Context, size int, fn func([]*entity.Title) error) error
}

type titleDoc struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Year         int      `json:"year"`
	Rating       *float64 `json:"rating"`
	Category     string   `json:"category"`
	CategoryName string   `json:"category_name"`
	Genres       []string `json:"genres"`
	GenreNames   []string `json:"genre_names"`
}

type ratingDoc struct {
	ID     uint     `json:"id"`
	Rating *float64 `json:"rating"`
}

type searchHits struct {
	Hits []struct {
		ID uint `json:"id"`
	} `json:"hits"`
	EstimatedTotalHits int64 `json:"estimatedTotalHits"`
}

type Service struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

// New connects to Meilisearch at host.
func New(host, apiKey string) *Service {
	return NewWithClient(meilisearch.New(host, meilisearch.WithAPIKey(apiKey)))
}

func NewWithClient(client meilisearch.ServiceManager) *Service {
	return &Service{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *Service) index() meilisearch.IndexManager {
	return s.client.Index(TitlesIndex)
}

// EnsureIndex applies the index settings. Meilisearch creates the index on first write.
func (s *Service) EnsureIndex() error {
	filterable := []any{"category", "genres", "year"}
	if _, err := s.index().UpdateFilterableAttributes(&filterable); err != nil {
		return fmt.Errorf("failed to update filterable attributes: %w", err)
	}

	sortable := []string{"rating", "year"}
	if _, err := s.index().UpdateSortableAttributes(&sortable); err != nil {
		return fmt.Errorf("failed to update sortable attributes: %w", err)
	}

	searchable := []string{"name", "description", "genre_names", "category_name"}
	if _, err := s.index().UpdateSearchableAttributes(&searchable); err != nil {
		return fmt.Errorf("failed to update searchable attributes: %w", err)
	}
	return nil
}

func (s *Service) IndexTitle(_ context.Context, title *entity.Title) error {
	return s.addDocuments([]titleDoc{s.toDoc(title)})
}

func (s *Service) DeleteTitle(_ context.Context, id uint) error {
	if _, err := s.index().DeleteDocument(strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("failed to delete title %d from index: %w", id, err)
	}
	return nil
}

// OnRatingChanged patches the rating field of an indexed title.
func (s *Service) OnRatingChanged(_ context.Context, titleID uint, rating *float64) error {
	docs := []ratingDoc{{ID: titleID, Rating: rating}}
	if _, err := s.index().UpdateDocuments(docs, strPtr("id")); err != nil {
		return fmt.Errorf("failed to update rating of title %d: %w", titleID, err)
	}
	return nil
}

// SearchTitles returns matching title ids in relevance order.
func (s *Service) SearchTitles(_ context.Context, query string, offset, limit int) ([]uint, int64, error) {
	raw, err := s.index().SearchRaw(query, &meilisearch.SearchRequest{
		Offset:               int64(offset),
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	var res searchHits
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uint, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, res.EstimatedTotalHits, nil
}

// Reindex pushes every title to the index and returns how many were sent.
func (s *Service) Reindex(ctx context.Context, src TitleSource) (int, error) {
	total := 0
	err := src.EachBatch(ctx, reindexBatchSize, func(titles []*entity.Title) error {
		docs := make([]titleDoc, 0, len(titles))
		for _, t := range titles {
			docs = append(docs, s.toDoc(t))
		}
		if err := s.addDocuments(docs); err != nil {
			return err
		}
		total += len(docs)
		return nil
	})
	if err != nil {
		return total, err
	}

	logging.Info().Int("titles", total).Msg("search index rebuilt")
	return total, nil
}

func (s *Service) addDocuments(docs []titleDoc) error {
	if len(docs) == 0 {
		return nil
	}
	task, err := s.index().AddDocuments(docs, strPtr("id"))
	if err != nil {
		return fmt.Errorf("failed to index titles: %w", err)
	}
	logging.Debug().Int("documents", len(docs)).Int64("task_uid", task.TaskUID).Msg("titles queued for indexing")
	return nil
}

func (s *Service) toDoc(t *entity.Title) titleDoc {
	doc := titleDoc{
		ID:          t.ID,
		Name:        t.Name,
		Description: s.cleanText(t.Description),
		Year:        t.Year,
		Rating:      t.Rating,
		Genres:      make([]string, 0, len(t.Genres)),
		GenreNames:  make([]string, 0, len(t.Genres)),
	}
	if t.Category != nil {
		doc.Category = t.Category.Slug
		doc.CategoryName = t.Category.Name
	}
	for _, g := range t.Genres {
		doc.Genres = append(doc.Genres, g.Slug)
		doc.GenreNames = append(doc.GenreNames, g.Name)
	}
	return doc
}

// cleanText strips markup so only words reach the index.
func (s *Service) cleanText(content string) string {
	for _, tag := range []string{"</p>", "<br>", "<br/>", "</div>"} {
		content = strings.ReplaceAll(content, tag, " ")
	}
	text := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(text), " ")
}

func strPtr(s string) *string {
	return &s
}
