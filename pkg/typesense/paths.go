package typesense

import (
	"net/url"
	"strings"
)

const (
	collectionsPath    = "/collections"
	aliasesPath        = "/aliases"
	keysPath           = "/keys"
	analyticsRulesPath = "/analytics/rules"
	multiSearchPath    = "/multi_search"
	debugPath          = "/debug"
	healthPath         = "/health"

	documentsSegment = "documents"
	synonymsSegment  = "synonyms"

	importAction = "import"
	exportAction = "export"
	searchAction = "search"
)

// joinPath appends escaped segments to base.
func joinPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(segment))
	}
	return b.String()
}
