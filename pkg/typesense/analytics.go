package typesense

import (
	"context"

	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
)

type AnalyticsRules struct {
	dispatcher *dispatcher.Dispatcher
	rules      *handles[*AnalyticsRule]
}

func newAnalyticsRules(d *dispatcher.Dispatcher) *AnalyticsRules {
	return &AnalyticsRules{
		dispatcher: d,
		rules: newHandles(func(id string) *AnalyticsRule {
			return &AnalyticsRule{dispatcher: d, id: id}
		}),
	}
}

func (a *AnalyticsRules) Get(id string) *AnalyticsRule {
	return a.rules.get(id)
}

func (a *AnalyticsRules) Create(ctx context.Context, rule any, params Params) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Post(ctx, analyticsRulesPath, rule, params, &out)
	return out, err
}

func (a *AnalyticsRules) Upsert(ctx context.Context, id string, rule any) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Put(ctx, joinPath(analyticsRulesPath, id), rule, nil, &out)
	return out, err
}

func (a *AnalyticsRules) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Get(ctx, analyticsRulesPath, nil, &out)
	return out, err
}

type AnalyticsRule struct {
	dispatcher *dispatcher.Dispatcher
	id         string
}

func (a *AnalyticsRule) Retrieve(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Get(ctx, joinPath(analyticsRulesPath, a.id), nil, &out)
	return out, err
}

func (a *AnalyticsRule) Delete(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := a.dispatcher.Delete(ctx, joinPath(analyticsRulesPath, a.id), nil, &out)
	return out, err
}
