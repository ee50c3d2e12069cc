package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/internal/healthcheck"
	"github.com/angeloszaimis/typesense-client/pkg/typesense"
)

var errUsage = errors.New("invalid usage")

type app struct {
	client  *typesense.Client
	checker *healthcheck.Checker
	cfg     *config.Config
	log     *slog.Logger
	out     io.Writer

	action string
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	command, rest := args[0], args[1:]

	switch command {
	case "health":
		return a.health(ctx)
	case "watch":
		return a.watch(ctx)
	case "debug":
		return a.debug(ctx)
	case "collections":
		return a.collections(ctx)
	case "export":
		if len(rest) != 1 {
			return fmt.Errorf("%w: export <collection>", errUsage)
		}
		return a.export(ctx, rest[0])
	case "import":
		if len(rest) != 2 {
			return fmt.Errorf("%w: import <collection> <file.jsonl>", errUsage)
		}
		return a.importFile(ctx, rest[0], rest[1])
	case "search":
		if len(rest) < 2 || len(rest) > 3 {
			return fmt.Errorf("%w: search <collection> <q> [query_by]", errUsage)
		}
		queryBy := ""
		if len(rest) == 3 {
			queryBy = rest[2]
		}
		return a.search(ctx, rest[0], rest[1], queryBy)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *app) health(ctx context.Context) error {
	status, err := a.client.Health(ctx)
	if err != nil {
		return err
	}

	if err := a.printJSON(status); err != nil {
		return err
	}

	if !status.OK {
		return errors.New("cluster is not healthy")
	}
	return nil
}

// watch probes the nodes on the health-check interval until interrupted.
func (a *app) watch(ctx context.Context) error {
	interval := a.cfg.HealthCheckInterval()
	a.log.Info("Watching nodes", slog.Duration("interval", interval))

	a.checker.Run(ctx, interval)
	return nil
}

func (a *app) debug(ctx context.Context) error {
	info, err := a.client.Debug().Retrieve(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(info)
}

func (a *app) collections(ctx context.Context) error {
	collections, err := a.client.Collections().Retrieve(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(collections)
}

func (a *app) export(ctx context.Context, collection string) error {
	raw, err := a.client.Collection(collection).Documents().Export(ctx, nil)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.out, raw)
	return err
}

func (a *app) importFile(ctx context.Context, collection, path string) error {
	docs, err := readJSONL(path)
	if err != nil {
		return err
	}

	results, err := a.client.Collection(collection).Documents().Import(ctx, docs,
		typesense.Params{"action": a.action})
	if err != nil {
		return err
	}

	failed := 0
	for i, result := range results {
		if ok, _ := result["success"].(bool); !ok {
			failed++
			a.log.Warn("Document failed to import",
				slog.Int("line", i+1),
				slog.Any("error", result["error"]))
		}
	}

	fmt.Fprintf(a.out, "imported %d of %d documents\n", len(results)-failed, len(results))

	if failed > 0 {
		return fmt.Errorf("%d documents failed to import", failed)
	}
	return nil
}

func (a *app) search(ctx context.Context, collection, q, queryBy string) error {
	params := typesense.SearchParams{"q": q}
	if queryBy != "" {
		params["query_by"] = queryBy
	}

	results, err := a.client.Collection(collection).Documents().Search(ctx, params)
	if err != nil {
		return err
	}
	return a.printJSON(results)
}

func (a *app) printJSON(v any) error {
	encoder := json.NewEncoder(a.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// readJSONL decodes one document per non-blank line.
func readJSONL(path string) ([]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var docs []any
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var doc map[string]any
		if err := json.Unmarshal(text, &doc); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		docs = append(docs, doc)
	}

	return docs, scanner.Err()
}
