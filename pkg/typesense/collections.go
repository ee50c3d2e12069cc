package typesense

import (
	"context"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
)

type Collections struct {
	dispatcher  *dispatcher.Dispatcher
	collections *handles[*Collection]
}

func newCollections(d *dispatcher.Dispatcher) *Collections {
	return &Collections{
		dispatcher: d,
		collections: newHandles(func(name string) *Collection {
			return newCollection(d, name)
		}),
	}
}

// Get returns the cached handle for the named collection.
func (c *Collections) Get(name string) *Collection {
	return c.collections.get(name)
}

// Create creates a collection from its schema.
func (c *Collections) Create(ctx context.Context, schema any) (map[string]any, error) {
	var out map[string]any
	err := c.dispatcher.Post(ctx, collectionsPath, schema, nil, &out)
	return out, err
}

// Retrieve lists every collection.
func (c *Collections) Retrieve(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	err := c.dispatcher.Get(ctx, collectionsPath, nil, &out)
	return out, err
}

type Collection struct {
	dispatcher *dispatcher.Dispatcher
	name       string
	documents  *Documents
	synonyms   *Synonyms
}

func newCollection(d *dispatcher.Dispatcher, name string) *Collection {
	return &Collection{
		dispatcher: d,
		name:       name,
		documents:  newDocuments(d, name),
		synonyms:   newSynonyms(d, name),
	}
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) path() string {
	return joinPath(collectionsPath, c.name)
}

func (c *Collection) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.dispatcher.Get(ctx, c.path(), nil, &out)
	return out, err
}

// Update alters the collection schema, e.g. to add or drop fields.
func (c *Collection) Update(ctx context.Context, schema any) (map[string]any, error) {
	var out map[string]any
	err := c.dispatcher.Patch(ctx, c.path(), schema, nil, &out)
	return out, err
}

func (c *Collection) Delete(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.dispatcher.Delete(ctx, c.path(), nil, &out)
	return out, err
}

func (c *Collection) Documents() *Documents {
	return c.documents
}

func (c *Collection) Document(id string) *Document {
	return c.documents.Get(id)
}

func (c *Collection) Synonyms() *Synonyms {
	return c.synonyms
}

func (c *Collection) Synonym(id string) *Synonym {
	return c.synonyms.Get(id)
}
