package datatable

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Case is a field naming convention.
type Case string

const (
	CaseCamel  Case = "camelCase"
	CaseSnake  Case = "snake_case"
	CaseKebab  Case = "kebab-case"
	CasePascal Case = "PascalCase"
)

// ParseCase accepts the canonical names plus the short forms used in the
// table definitions file ("camel", "snake", "kebab", "pascal").
func ParseCase(s string) (Case, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "camel", "camelcase":
		return CaseCamel, true
	case "snake", "snake_case":
		return CaseSnake, true
	case "kebab", "kebab-case":
		return CaseKebab, true
	case "pascal", "pascalcase":
		return CasePascal, true
	}
	return "", false
}

// splitWords breaks an identifier into lowercase words on '_', '-', spaces
// and case boundaries. "userID" -> [user id], "HTTPStatus" -> [http status],
// "from_date" -> [from date].
func splitWords(s string) []string {
	var words []string
	var cur []rune
	runes := []rune(s)

	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r) || r == '.':
			flush()
		case unicode.IsUpper(r):
			if len(cur) > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// ConvertCase rewrites identifier s in the target convention. An unknown
// target returns s unchanged.
func ConvertCase(s string, to Case) string {
	words := splitWords(s)
	if len(words) == 0 {
		return s
	}

	switch to {
	case CaseSnake:
		return strings.Join(words, "_")
	case CaseKebab:
		return strings.Join(words, "-")
	case CaseCamel, CasePascal:
		var b strings.Builder
		for i, w := range words {
			if i == 0 && to == CaseCamel {
				b.WriteString(w)
				continue
			}
			b.WriteString(upperFirst(w))
		}
		return b.String()
	default:
		return s
	}
}

func upperFirst(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// CaseConfig says how internal (camelCase) field ids are spelled in the URL
// and in API requests. Zero values mean "leave as is".
type CaseConfig struct {
	URLFormat Case `yaml:"url" json:"urlFormat,omitempty"`
	APIFormat Case `yaml:"api" json:"apiFormat,omitempty"`
}

// ToURL converts an internal field id to its URL spelling.
func (c CaseConfig) ToURL(field string) string {
	if c.URLFormat == "" || field == "" {
		return field
	}
	return ConvertCase(field, c.URLFormat)
}

// FromURL converts a URL spelling back to the internal camelCase id.
func (c CaseConfig) FromURL(field string) string {
	if c.URLFormat == "" || field == "" {
		return field
	}
	return ConvertCase(field, CaseCamel)
}

// ToAPI converts an internal field id to the API spelling.
func (c CaseConfig) ToAPI(field string) string {
	if c.APIFormat == "" || field == "" {
		return field
	}
	return ConvertCase(field, c.APIFormat)
}

// FromAPI converts an API field name back to the internal camelCase id.
func (c CaseConfig) FromAPI(field string) string {
	if c.APIFormat == "" || field == "" {
		return field
	}
	return ConvertCase(field, CaseCamel)
}

// API parameter names. Dates keep their snake spelling regardless of
// APIFormat; the backend contract names them that way.
const (
	APIParamPage      = "page"
	APIParamLimit     = "limit"
	APIParamSearch    = "search"
	APIParamSortBy    = "sort_by"
	APIParamSortOrder = "sort_order"
	APIParamFromDate  = "from_date"
	APIParamToDate    = "to_date"
)

// APIQuery renders req as upstream query parameters. Sort column and filter
// keys are converted to APIFormat; so are the multi-word parameter names.
func (c CaseConfig) APIQuery(req PageRequest) url.Values {
	q := url.Values{}
	q.Set(APIParamPage, strconv.Itoa(req.Page))
	q.Set(APIParamLimit, strconv.Itoa(req.PageSize))
	if req.Search != "" {
		q.Set(APIParamSearch, req.Search)
	}
	if req.SortBy != "" {
		q.Set(c.paramName(APIParamSortBy), c.ToAPI(req.SortBy))
		q.Set(c.paramName(APIParamSortOrder), string(req.SortOrder))
	}
	if dr := req.DateRange; !dr.IsZero() {
		if dr.From != "" {
			q.Set(APIParamFromDate, dr.From)
		}
		if dr.To != "" {
			q.Set(APIParamToDate, dr.To)
		}
	}

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(c.ToAPI(k), req.Filters[k])
	}
	return q
}

func (c CaseConfig) paramName(snake string) string {
	if c.APIFormat == "" {
		return snake
	}
	return ConvertCase(snake, c.APIFormat)
}
