package expression

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Render substitutes "{{<encoding>://<expr>}}" placeholders left to right.
// The default encoding is text; json, yaml, base64 and datauri:<mime> are
// also supported. Rendering an absent value yields the empty string. Text
// outside placeholders is copied verbatim.
func Render(ctx *Context, text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			b.WriteString(text)
			break
		}
		end += start

		b.WriteString(text[:start])
		b.WriteString(renderPlaceholder(ctx, text[start+2:end]))
		text = text[end+2:]
	}
	return b.String()
}

// renderPlaceholder evaluates a single placeholder body of the form
// "<encoding>://<expr>" (or a bare expression, encoded as text).
func renderPlaceholder(ctx *Context, body string) string {
	encoding := "text"
	expr := body
	if enc, rest, found := strings.Cut(body, "://"); found {
		encoding = enc
		expr = rest
	}

	value := Evaluate(ctx, expr)

	switch {
	case encoding == "text":
		return Textualize(value)
	case encoding == "json":
		data, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(data)
	case encoding == "yaml":
		data, err := yaml.Marshal(value)
		if err != nil {
			return ""
		}
		return strings.TrimRight(string(data), "\n")
	case encoding == "base64":
		return base64.StdEncoding.EncodeToString(rawBytes(value))
	case strings.HasPrefix(encoding, "datauri:"):
		mime := strings.TrimPrefix(encoding, "datauri:")
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(rawBytes(value))
	default:
		return Textualize(value)
	}
}

// Textualize converts a value to its textual form: strings pass through,
// bytes decode as UTF-8, scalars print naturally, and structured content
// renders as JSON. Nil yields the empty string.
func Textualize(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func rawBytes(value any) []byte {
	if b, ok := value.([]byte); ok {
		return b
	}
	return []byte(Textualize(value))
}
