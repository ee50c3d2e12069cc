package typesense

import (
	"context"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
)

// MultiSearch runs several searches in one request.
type MultiSearch struct {
	dispatcher *dispatcher.Dispatcher
}

// Perform sends searches, e.g. {"searches": [...]}. commonParams apply to
// every search in the batch.
func (m *MultiSearch) Perform(ctx context.Context, searches any, commonParams Params) (map[string]any, error) {
	var out map[string]any
	err := m.dispatcher.Post(ctx, multiSearchPath, searches, commonParams, &out)
	return out, err
}

type Debug struct {
	dispatcher *dispatcher.Dispatcher
}

// Retrieve returns the server's debug information, including its version.
func (d *Debug) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := d.dispatcher.Get(ctx, debugPath, nil, &out)
	return out, err
}
