package typesense

import (
	"context"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
)

// Aliases maps virtual collection names to real ones.
type Aliases struct {
	dispatcher *dispatcher.Dispatcher
	aliases    *handles[*Alias]
}

func newAliases(d *dispatcher.Dispatcher) *Aliases {
	return &Aliases{
		dispatcher: d,
		aliases: newHandles(func(name string) *Alias {
			return &Alias{dispatcher: d, name: name}
		}),
	}
}

func (a *Aliases) Get(name string) *Alias {
	return a.aliases.get(name)
}

// Upsert points the alias at the collection named in mapping, e.g.
// {"collection_name": "books_v2"}.
func (a *Aliases) Upsert(ctx context.Context, name string, mapping any) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Put(ctx, joinPath(aliasesPath, name), mapping, nil, &out)
	return out, err
}

func (a *Aliases) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Get(ctx, aliasesPath, nil, &out)
	return out, err
}

type Alias struct {
	dispatcher *dispatcher.Dispatcher
	name       string
}

func (a *Alias) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Get(ctx, joinPath(aliasesPath, a.name), nil, &out)
	return out, err
}

func (a *Alias) Delete(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Delete(ctx, joinPath(aliasesPath, a.name), nil, &out)
	return out, err
}
