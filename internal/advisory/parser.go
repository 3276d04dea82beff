package advisory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"llm-fx-advisor/internal/types"
)

const defaultMaxReasonLen = 280

// ParserConfig controls validation of oracle replies.
type ParserConfig struct {
	Fields       FieldNames
	MaxReasonLen int
}

// Parser turns raw oracle text into a validated AdvisoryResult. Parse never fails:
// anything it cannot validate becomes the ERROR sentinel.
type Parser struct {
	fields    FieldNames
	maxReason int
}

func NewParser(cfg ParserConfig) *Parser {
	if cfg.MaxReasonLen <= 0 {
		cfg.MaxReasonLen = defaultMaxReasonLen
	}
	return &Parser{fields: cfg.Fields.withDefaults(), maxReason: cfg.MaxReasonLen}
}

// ParseError is the internal failure behind an ERROR result. Detail is the summary that
// ends up in the result; Err keeps the decoder's own message for logs.
type ParseError struct {
	Stage  string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("advisory %s failed: %s: %v", e.Stage, e.Detail, e.Err)
	}
	return e.summary()
}

func (e *ParseError) summary() string {
	return fmt.Sprintf("advisory %s failed: %s", e.Stage, e.Detail)
}

func (e *ParseError) Is(target error) bool {
	return target == types.ErrAdvisoryParse
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse validates raw. On failure the result is {ERROR, 0, diagnostic}.
func (p *Parser) Parse(raw string) types.AdvisoryResult {
	res, err := p.Decode(raw)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return types.ErrorResult(truncate(pe.summary(), p.maxReason))
		}
		return types.ErrorResult("advisory response rejected")
	}
	return res
}

// Decode is Parse with the failure exposed, for callers that log or count parse errors.
func (p *Parser) Decode(raw string) (types.AdvisoryResult, error) {
	body := stripFences(raw)
	if body == "" {
		return types.AdvisoryResult{}, &ParseError{Stage: "decode", Detail: "empty response"}
	}

	m, err := extractObject(body)
	if err != nil {
		return types.AdvisoryResult{}, err
	}

	sig, err := p.signal(m)
	if err != nil {
		return types.AdvisoryResult{}, err
	}
	conf, err := p.confidence(m)
	if err != nil {
		return types.AdvisoryResult{}, err
	}
	reason, err := p.reason(m)
	if err != nil {
		return types.AdvisoryResult{}, err
	}

	return types.AdvisoryResult{Signal: sig, Confidence: conf, Reason: reason}, nil
}

func (p *Parser) signal(m map[string]any) (types.AdvisorySignal, error) {
	v, key, ok := lookup(m, candidates(p.fields.Signal, "signal"))
	if !ok || v == nil {
		return "", &ParseError{Stage: "validation", Detail: fmt.Sprintf("missing %q field", p.fields.Signal)}
	}
	s, isStr := v.(string)
	if !isStr {
		return "", &ParseError{Stage: "validation", Detail: fmt.Sprintf("%q must be a string", key)}
	}
	sig := types.AdvisorySignal(strings.ToUpper(strings.TrimSpace(s)))
	if !sig.Valid() {
		return "", &ParseError{Stage: "validation", Detail: fmt.Sprintf("signal %q is not one of BUY, SELL, WAIT", s)}
	}
	return sig, nil
}

// confidence defaults to 0 when absent. Out-of-range values are rejected, not clamped.
func (p *Parser) confidence(m map[string]any) (int, error) {
	v, key, ok := lookup(m, candidates(p.fields.Confidence, "confidence"))
	if !ok || v == nil {
		return 0, nil
	}
	n, isNum := v.(json.Number)
	if !isNum {
		return 0, &ParseError{Stage: "validation", Detail: fmt.Sprintf("%q must be a number", key)}
	}

	var conf int64
	if i, err := n.Int64(); err == nil {
		conf = i
	} else {
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, &ParseError{Stage: "validation", Detail: fmt.Sprintf("confidence %s is not an integer", n)}
		}
		conf = int64(f)
	}

	if conf < 0 || conf > 100 {
		return 0, &ParseError{Stage: "validation", Detail: fmt.Sprintf("confidence %d outside 0-100", conf)}
	}
	return int(conf), nil
}

func (p *Parser) reason(m map[string]any) (string, error) {
	v, key, ok := lookup(m, candidates(p.fields.Reason, "reason"))
	if !ok || v == nil {
		return "", &ParseError{Stage: "validation", Detail: fmt.Sprintf("missing %q field", p.fields.Reason)}
	}
	s, isStr := v.(string)
	if !isStr {
		return "", &ParseError{Stage: "validation", Detail: fmt.Sprintf("%q must be a string", key)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ParseError{Stage: "validation", Detail: "reason is empty"}
	}
	return truncate(s, p.maxReason), nil
}

func lookup(m map[string]any, keys []string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, k, true
		}
	}
	return nil, "", false
}

// stripFences removes a surrounding ``` fence (with optional language tag) and whitespace.
func stripFences(raw string) string {
	t := strings.TrimSpace(raw)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimLeftFunc(t, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '+'
		})
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// extractObject finds the single JSON object in body. Prose around it is ignored, as are
// brace spans that are not JSON, such as "{my}". Two valid objects make the reply ambiguous.
func extractObject(body string) (map[string]any, error) {
	spans := objectSpans(body)
	if len(spans) == 0 {
		return nil, &ParseError{Stage: "decode", Detail: "no JSON object in response"}
	}

	var found map[string]any
	var firstErr error
	for _, span := range spans {
		m, err := decodeObject(span)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if found != nil {
			return nil, &ParseError{Stage: "decode", Detail: "multiple JSON objects in response"}
		}
		found = m
	}
	if found == nil {
		return nil, &ParseError{Stage: "decode", Detail: "response is not valid JSON", Err: firstErr}
	}
	return found, nil
}

// objectSpans returns every top-level brace-balanced {...} span. Braces inside quoted
// strings do not count. An unclosed span is dropped.
func objectSpans(body string) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, body[start:i+1])
			}
		}
	}
	return spans
}

func decodeObject(span string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(span))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return m, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
