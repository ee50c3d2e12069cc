package typesense

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cast"

	"github.com/angeloszaimis/typesense-client/pkg/apierror"
)

// SearchParams are the parameters of a search. Slice values such as
// query_by are joined with commas.
type SearchParams map[string]any

// Normalize renders every value as text and checks that q is present.
func (p SearchParams) Normalize() (Params, error) {
	text := make(map[string]any, len(p))
	for key, value := range p {
		rendered, err := stringifySearchValue(value)
		if err != nil {
			return nil, apierror.Client(fmt.Sprintf("search parameter %q: %v", key, err))
		}
		text[key] = rendered
	}

	err := validation.Validate(text,
		validation.Map(
			validation.Key("q", validation.Required),
		).AllowExtraKeys(),
	)
	if err != nil {
		return nil, apierror.Client(fmt.Sprintf("invalid search parameters: %v", err))
	}

	return Params(text), nil
}

func stringifySearchValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []string:
		return strings.Join(v, ","), nil
	case []any:
		parts, err := cast.ToStringSliceE(v)
		if err != nil {
			return "", err
		}
		return strings.Join(parts, ","), nil
	default:
		return cast.ToStringE(v)
	}
}
