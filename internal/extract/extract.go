// Package extract converts free-text LLM responses into structured JSON.
//
// Providers are asked for JSON but routinely wrap it in markdown fences,
// prose, or Python-flavored literals. An ordered list of named strategies is
// tried in sequence; the first that yields valid JSON wins.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when every strategy fails on a response.
var ErrNoJSON = errors.New("extract: no parseable JSON found in response")

// Strategy attempts to pull a JSON document out of raw text.
type Strategy struct {
	Name  string
	Parse func(raw string) ([]byte, error)
}

// Strategies is the ordered fallback chain. Order matters: the cheapest,
// most precise strategies run first and the lossy repair pass runs last.
var Strategies = []Strategy{
	{Name: "fenced_json", Parse: fencedJSON},
	{Name: "fenced_any", Parse: fencedAny},
	{Name: "balanced_braces", Parse: balancedBraces},
	{Name: "repair", Parse: repair},
}

// JSON extracts the first parseable JSON object from raw text, returning the
// document and the name of the strategy that produced it.
func JSON(raw string) ([]byte, string, error) {
	for _, s := range Strategies {
		doc, err := s.Parse(raw)
		if err != nil {
			continue
		}
		if json.Valid(doc) {
			return doc, s.Name, nil
		}
	}
	return nil, "", ErrNoJSON
}

// Unmarshal extracts JSON from raw text and decodes it into v.
func Unmarshal(raw string, v any) error {
	doc, _, err := JSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("extract: decode: %w", err)
	}
	return nil
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

func fencedJSON(raw string) ([]byte, error) {
	m := fencedJSONRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("extract: no ```json fence")
	}
	return []byte(strings.TrimSpace(m[1])), nil
}

func fencedAny(raw string) ([]byte, error) {
	m := fencedAnyRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("extract: no fenced block")
	}
	return []byte(strings.TrimSpace(m[1])), nil
}

// balancedBraces returns the first brace-balanced region of the text.
// Quote-aware so braces inside string values do not break the count.
func balancedBraces(raw string) ([]byte, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return nil, fmt.Errorf("extract: no opening brace")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return []byte(raw[start : i+1]), nil
				}
			}
		}
	}
	return nil, fmt.Errorf("extract: unbalanced braces")
}

var (
	smartQuotes = strings.NewReplacer(
		"“", `"`, "”", `"`, // curly double quotes
		"‘", "'", "’", "'", // curly single quotes
	)
	pyTrue  = regexp.MustCompile(`\bTrue\b`)
	pyFalse = regexp.MustCompile(`\bFalse\b`)
	pyNone  = regexp.MustCompile(`\bNone\b`)
)

// repair normalizes quote characters and Python literal tokens, then retries
// the balanced-brace extraction. Single quotes become double quotes only
// outside already-double-quoted strings, so valid JSON survives the pass.
func repair(raw string) ([]byte, error) {
	fixed := smartQuotes.Replace(raw)
	fixed = pyTrue.ReplaceAllString(fixed, "true")
	fixed = pyFalse.ReplaceAllString(fixed, "false")
	fixed = pyNone.ReplaceAllString(fixed, "null")

	doc, err := balancedBraces(fixed)
	if err != nil {
		return nil, err
	}
	if json.Valid(doc) {
		return doc, nil
	}

	// Python repr uses single-quoted strings; swap them wholesale and retry.
	swapped := swapSingleQuotes(string(doc))
	return []byte(swapped), nil
}

// swapSingleQuotes rewrites single-quoted strings as double-quoted ones,
// escaping any embedded double quotes.
func swapSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSingle := false
	inDouble := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\'':
			if inDouble {
				b.WriteByte(c)
				continue
			}
			inSingle = !inSingle
			b.WriteByte('"')
		case '"':
			if inSingle {
				b.WriteString(`\"`)
				continue
			}
			inDouble = !inDouble
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
