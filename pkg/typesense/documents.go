package typesense

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
	"github.com/angeloszaimis/typesense-client/pkg/apierror"
)

const (
	actionParam  = "action"
	actionCreate = "create"
	actionUpsert = "upsert"
	actionUpdate = "update"
)

// Documents addresses the documents of one collection.
type Documents struct {
	dispatcher *dispatcher.Dispatcher
	collection string
	documents  *handles[*Document]
}

func newDocuments(d *dispatcher.Dispatcher, collection string) *Documents {
	return &Documents{
		dispatcher: d,
		collection: collection,
		documents: newHandles(func(id string) *Document {
			return &Document{dispatcher: d, collection: collection, id: id}
		}),
	}
}

// Get returns the cached handle for the document with the given id.
func (d *Documents) Get(id string) *Document {
	return d.documents.get(id)
}

func (d *Documents) path(action ...string) string {
	return joinPath(collectionsPath, append([]string{d.collection, documentsSegment}, action...)...)
}

func (d *Documents) Create(ctx context.Context, document any, params Params) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Post(ctx, d.path(), document, withAction(params, actionCreate), &out)
	return out, err
}

func (d *Documents) Upsert(ctx context.Context, document any, params Params) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Post(ctx, d.path(), document, withAction(params, actionUpsert), &out)
	return out, err
}

// Update applies a partial document. With a filter_by param it updates
// every matching document.
func (d *Documents) Update(ctx context.Context, document any, params Params) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Patch(ctx, d.path(), document, withAction(params, actionUpdate), &out)
	return out, err
}

// Delete removes the documents matched by params, typically filter_by.
func (d *Documents) Delete(ctx context.Context, params Params) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Delete(ctx, d.path(), params, &out)
	return out, err
}

// Search runs a query against the collection. q is required.
func (d *Documents) Search(ctx context.Context, params SearchParams) (map[string]any, error) {
	query, err := params.Normalize()
	if err != nil {
		return nil, err
	}

	var out map[string]any
	err = d.dispatcher.Get(ctx, d.path(searchAction), query, &out)
	return out, err
}

// Export returns every document as JSON lines.
func (d *Documents) Export(ctx context.Context, params Params) (string, error) {
	return d.dispatcher.GetRaw(ctx, d.path(exportAction), params)
}

// Import sends docs as JSON lines in one request and returns the
// per-document results in input order.
func (d *Documents) Import(ctx context.Context, docs []any, params Params) ([]map[string]any, error) {
	if len(docs) == 0 {
		return nil, apierror.Client("Cannot import an empty list of documents.")
	}

	lines := make([]string, 0, len(docs))
	for i, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			return nil, apierror.Client(fmt.Sprintf("encode document %d: %v", i, err))
		}
		lines = append(lines, string(line))
	}

	raw, err := d.dispatcher.PostRaw(ctx, d.path(importAction), strings.Join(lines, "\n"), params)
	if err != nil {
		return nil, err
	}

	return parseImportResults(raw)
}

// ImportJSONL sends pre-encoded JSON lines and returns the raw response.
func (d *Documents) ImportJSONL(ctx context.Context, jsonl string, params Params) (string, error) {
	return d.dispatcher.PostRaw(ctx, d.path(importAction), jsonl, params)
}

func parseImportResults(raw string) ([]map[string]any, error) {
	lines := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")

	results := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		var result map[string]any
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			return nil, apierror.InvalidResponse(line, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// withAction copies params and sets the write action.
func withAction(params Params, action string) Params {
	out := make(Params, len(params)+1)
	for key, value := range params {
		out[key] = value
	}
	out[actionParam] = action
	return out
}

// Document addresses a single document by id.
type Document struct {
	dispatcher *dispatcher.Dispatcher
	collection string
	id         string
}

func (d *Document) ID() string {
	return d.id
}

func (d *Document) path() string {
	return joinPath(collectionsPath, d.collection, documentsSegment, d.id)
}

func (d *Document) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Get(ctx, d.path(), nil, &out)
	return out, err
}

func (d *Document) Update(ctx context.Context, document any, params Params) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Patch(ctx, d.path(), document, params, &out)
	return out, err
}

func (d *Document) Delete(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Delete(ctx, d.path(), nil, &out)
	return out, err
}
