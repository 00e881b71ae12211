package msgstore

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Index is the full-text recall index over message bodies, backing the
// recall_memory capability.
type Index struct {
	index bleve.Index
}

// indexDoc is what actually gets indexed per message.
type indexDoc struct {
	Topic  string `json:"topic"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// NewIndex opens or creates a recall index at path. An empty path keeps
// the index in memory, which is what tests and throwaway sessions use.
func NewIndex(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory recall index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open recall index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	topicField := bleve.NewTextFieldMapping()
	topicField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("topic", topicField)

	senderField := bleve.NewTextFieldMapping()
	senderField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("sender", senderField)

	bodyField := bleve.NewTextFieldMapping()
	bodyField.Analyzer = standard.Name
	doc.AddFieldMappingsAt("body", bodyField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Add indexes one message under its ID.
func (i *Index) Add(msg Message) error {
	return i.index.Index(msg.ID, indexDoc{
		Topic:  msg.Topic,
		Sender: msg.Sender,
		Body:   msg.Body,
	})
}

// Search returns the IDs of the best-matching messages for a free-text
// query.
func (i *Index) Search(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("body")

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("recall search failed: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}
