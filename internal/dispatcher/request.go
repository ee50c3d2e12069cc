package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"

	"github.com/angeloszaimis/typesense-client/pkg/apierror"
)

// Params are query parameters. Values may be strings, booleans or numbers.
type Params map[string]any

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain"
)

// Get decodes the JSON response into out. A nil out discards the body.
func (d *Dispatcher) Get(ctx context.Context, endpoint string, params Params, out any) error {
	raw, err := d.Request(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

// GetRaw returns the response body as text, for endpoints such as exports
// that answer with JSON lines rather than a single document.
func (d *Dispatcher) GetRaw(ctx context.Context, endpoint string, params Params) (string, error) {
	raw, err := d.Request(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *Dispatcher) Post(ctx context.Context, endpoint string, body any, params Params, out any) error {
	raw, err := d.Request(ctx, http.MethodPost, endpoint, params, body)
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

// PostRaw is Post returning the response body as text.
func (d *Dispatcher) PostRaw(ctx context.Context, endpoint string, body any, params Params) (string, error) {
	raw, err := d.Request(ctx, http.MethodPost, endpoint, params, body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *Dispatcher) Put(ctx context.Context, endpoint string, body any, params Params, out any) error {
	raw, err := d.Request(ctx, http.MethodPut, endpoint, params, body)
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

func (d *Dispatcher) Patch(ctx context.Context, endpoint string, body any, params Params, out any) error {
	raw, err := d.Request(ctx, http.MethodPatch, endpoint, params, body)
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

func (d *Dispatcher) Delete(ctx context.Context, endpoint string, params Params, out any) error {
	raw, err := d.Request(ctx, http.MethodDelete, endpoint, params, nil)
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

// NormalizeParams renders query parameters as text. Booleans become "true"
// and "false", which is what the server expects.
func NormalizeParams(params Params) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}

	query := make(map[string]string, len(params))
	for key, value := range params {
		text, err := cast.ToStringE(value)
		if err != nil {
			return nil, apierror.Client(fmt.Sprintf("query parameter %q: %v", key, err))
		}
		query[key] = text
	}

	return query, nil
}

// encodeBody sends strings and bytes as they are and JSON encodes anything
// else.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), contentTypeText, nil
	case []byte:
		return b, contentTypeText, nil
	case json.RawMessage:
		return b, contentTypeJSON, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", apierror.Client(fmt.Sprintf("encode request body: %v", err))
		}
		return data, contentTypeJSON, nil
	}
}

func decodeJSON(raw []byte, out any) error {
	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apierror.InvalidResponse(string(raw), err)
	}

	return nil
}

// errorMessage extracts the server's message from a JSON error body.
func errorMessage(resp *resty.Response) string {
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), contentTypeJSON) {
		return apierror.DefaultMessage
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Message == "" {
		return apierror.DefaultMessage
	}

	return body.Message
}
