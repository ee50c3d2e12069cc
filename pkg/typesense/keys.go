package typesense

import (
	"context"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
)

// Keys manages API keys.
type Keys struct {
	dispatcher *dispatcher.Dispatcher
	keys       *handles[*Key]
}

func newKeys(d *dispatcher.Dispatcher) *Keys {
	return &Keys{
		dispatcher: d,
		keys: newHandles(func(id string) *Key {
			return &Key{dispatcher: d, id: id}
		}),
	}
}

func (k *Keys) Get(id string) *Key {
	return k.keys.get(id)
}

// Create issues a key. The full key value is only returned here.
func (k *Keys) Create(ctx context.Context, schema any) (map[string]any, error) {
	var out map[string]any
	err := k.dispatcher.Post(ctx, keysPath, schema, nil, &out)
	return out, err
}

func (k *Keys) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := k.dispatcher.Get(ctx, keysPath, nil, &out)
	return out, err
}

type Key struct {
	dispatcher *dispatcher.Dispatcher
	id         string
}

func (k *Key) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := k.dispatcher.Get(ctx, joinPath(keysPath, k.id), nil, &out)
	return out, err
}

func (k *Key) Delete(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := k.dispatcher.Delete(ctx, joinPath(keysPath, k.id), nil, &out)
	return out, err
}
