// Package broker provides the components realizing the messaging
// contracts: broker input (queue-bound subscriptions with per-message
// settlement), broker output (encode and publish), and the request/reply
// requester with correlation, expiry and streaming completion.
package broker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/SolaceDev/solace-ai-connector/errors"
	"github.com/SolaceDev/solace-ai-connector/expression"
)

// DecodePayload converts broker bytes into a message payload according to
// the configured encoding (utf-8, base64, none) and format (text, json,
// yaml).
func DecodePayload(data []byte, encoding, format string) (any, error) {
	raw := data
	switch encoding {
	case "", "utf-8", "none":
	case "base64":
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
		n, err := base64.StdEncoding.Decode(decoded, data)
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %w", errors.ErrDecodeFailed, err)
		}
		raw = decoded[:n]
	default:
		return nil, fmt.Errorf("%w: unknown payload_encoding %q", errors.ErrDecodeFailed, encoding)
	}

	switch format {
	case "text":
		return string(raw), nil
	case "", "json":
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: json: %w", errors.ErrDecodeFailed, err)
		}
		return out, nil
	case "yaml":
		var out any
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: yaml: %w", errors.ErrDecodeFailed, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown payload_format %q", errors.ErrDecodeFailed, format)
	}
}

// EncodePayload converts a message payload into broker bytes according to
// the configured format and encoding.
func EncodePayload(payload any, encoding, format string) ([]byte, error) {
	var raw []byte
	switch format {
	case "text":
		raw = []byte(expression.Textualize(payload))
	case "", "json":
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.WrapInvalid(err, "broker", "EncodePayload", "json encode")
		}
		raw = data
	case "yaml":
		data, err := yaml.Marshal(payload)
		if err != nil {
			return nil, errors.WrapInvalid(err, "broker", "EncodePayload", "yaml encode")
		}
		raw = data
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown payload_format %q", format),
			"broker", "EncodePayload", "format check")
	}

	switch encoding {
	case "", "utf-8", "none":
		return raw, nil
	case "base64":
		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
		base64.StdEncoding.Encode(encoded, raw)
		return encoded, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown payload_encoding %q", encoding),
			"broker", "EncodePayload", "encoding check")
	}
}
