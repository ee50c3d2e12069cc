package typesense

import (
	"context"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
)

// Synonyms addresses the synonym sets of one collection.
type Synonyms struct {
	dispatcher *dispatcher.Dispatcher
	collection string
	synonyms   *handles[*Synonym]
}

func newSynonyms(d *dispatcher.Dispatcher, collection string) *Synonyms {
	return &Synonyms{
		dispatcher: d,
		collection: collection,
		synonyms: newHandles(func(id string) *Synonym {
			return &Synonym{dispatcher: d, collection: collection, id: id}
		}),
	}
}

func (s *Synonyms) Get(id string) *Synonym {
	return s.synonyms.get(id)
}

func (s *Synonyms) path(segments ...string) string {
	return joinPath(collectionsPath, append([]string{s.collection, synonymsSegment}, segments...)...)
}

// Upsert creates or replaces the synonym set with the given id.
func (s *Synonyms) Upsert(ctx context.Context, id string, synonym any) (map[string]any, error) {
	var out map[string]any
	err := s.dispatcher.Put(ctx, s.path(id), synonym, nil, &out)
	return out, err
}

func (s *Synonyms) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := s.dispatcher.Get(ctx, s.path(), nil, &out)
	return out, err
}

type Synonym struct {
	dispatcher *dispatcher.Dispatcher
	collection string
	id         string
}

func (s *Synonym) path() string {
	return joinPath(collectionsPath, s.collection, synonymsSegment, s.id)
}

func (s *Synonym) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := s.dispatcher.Get(ctx, s.path(), nil, &out)
	return out, err
}

func (s *Synonym) Delete(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := s.dispatcher.Delete(ctx, s.path(), nil, &out)
	return out, err
}
