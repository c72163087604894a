package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoJSON is returned when a model answer holds no JSON object.
var ErrNoJSON = errors.New("no json object in model response")

// keySynonyms maps squashed key spellings (lowercase, letters and digits only) to canonical names.
var keySynonyms = map[string]string{
	"customer":        FieldCustomer,
	"customername":    FieldCustomer,
	"client":          FieldCustomer,
	"partnumber":      FieldPartNumber,
	"partno":          FieldPartNumber,
	"partnum":         FieldPartNumber,
	"pn":              FieldPartNumber,
	"description":     FieldDescription,
	"partdescription": FieldDescription,
	"desc":            FieldDescription,
}

// ExtractJSONObject pulls the JSON object out of a model answer. A single Markdown code fence
// around the object is stripped; any other text before or after it makes the answer invalid.
func ExtractJSONObject(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, ErrNoJSON
	}
	return []byte(s), nil
}

// normalized is the outcome of mapping a decoded model object onto the canonical keys.
type normalized struct {
	fields  map[string]string
	unknown []string
	dropped []string
}

// normalize walks keys in sorted order so duplicate synonyms resolve the same way every time:
// an exact canonical key always wins, otherwise the first synonym in key order is kept.
// Nulls and nested values still mark the key present, with an empty value.
func normalize(m map[string]any) normalized {
	n := normalized{fields: make(map[string]string, len(RequiredFields))}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		canon, ok := canonicalKey(k)
		if !ok {
			n.unknown = append(n.unknown, k)
			n.dropped = append(n.dropped, k+"(unknown)")
			continue
		}
		if _, exists := n.fields[canon]; exists && canon != k {
			n.dropped = append(n.dropped, k+"(duplicate)")
			continue
		}
		switch t := v.(type) {
		case string:
			n.fields[canon] = strings.TrimSpace(t)
		case float64:
			n.fields[canon] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			n.fields[canon] = strconv.FormatBool(t)
		case nil:
			n.fields[canon] = ""
			n.dropped = append(n.dropped, k+"(null)")
		default:
			n.fields[canon] = ""
			n.dropped = append(n.dropped, k+"(type)")
		}
		if canon != k {
			n.dropped = append(n.dropped, k+"->"+canon)
		}
	}
	return n
}

// NormalizeAndSanitizeJSON
// - Renames known key synonyms onto the canonical keys
// - Coerces numbers and booleans to strings, trims strings
// - Keeps null or nested canonical values as empty strings
// - Drops unknown keys
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	cleaned, n, err := normalizeRaw(raw, logger)
	return cleaned, n.dropped, err
}

func normalizeRaw(raw []byte, logger *slog.Logger) ([]byte, normalized, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, normalized{}, fmt.Errorf("sanitize: decode: %w", err)
	}
	n := normalize(m)

	b, err := json.Marshal(n.fields)
	if err != nil {
		return nil, n, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(n.dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", n.dropped)
	}
	return b, n, nil
}

func canonicalKey(k string) (string, bool) {
	for _, name := range RequiredFields {
		if k == name {
			return name, true
		}
	}
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	canon, ok := keySynonyms[b.String()]
	return canon, ok
}

// ParseFields turns a model answer into TravelerFields: locate the JSON, normalize it,
// validate against the schema and decode. The returned bytes are the cleaned JSON.
// Keys that map to no field are kept in Unrecognized, so a non-empty object is never empty.
func ParseFields(content string, logger *slog.Logger) (TravelerFields, []byte, error) {
	obj, err := ExtractJSONObject(content)
	if err != nil {
		return TravelerFields{}, []byte(content), err
	}
	cleaned, n, err := normalizeRaw(obj, logger)
	if err != nil {
		return TravelerFields{}, obj, err
	}
	if err := ValidateTravelerJSON(cleaned); err != nil {
		return TravelerFields{}, cleaned, fmt.Errorf("schema validation failed: %w", err)
	}
	var out TravelerFields
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return TravelerFields{}, cleaned, fmt.Errorf("unmarshal fields: %w", err)
	}
	out.Unrecognized = n.unknown
	return out, cleaned, nil
}
