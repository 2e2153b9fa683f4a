package broker

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		encoding string
		format   string
		expected any
		wantErr  bool
	}{
		{"json object", []byte(`{"a":1}`), "utf-8", "json", map[string]any{"a": float64(1)}, false},
		{"text", []byte("hello"), "utf-8", "text", "hello", false},
		{"yaml", []byte("a: 1\n"), "utf-8", "yaml", map[string]any{"a": 1}, false},
		{"base64 text", []byte(base64.StdEncoding.EncodeToString([]byte("hi"))), "base64", "text", "hi", false},
		{"bad json", []byte(`{`), "utf-8", "json", nil, true},
		{"bad base64", []byte("!!!"), "base64", "text", nil, true},
		{"unknown encoding", []byte("x"), "rot13", "text", nil, true},
		{"unknown format", []byte("x"), "utf-8", "xml", nil, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := DecodePayload(test.data, test.encoding, test.format)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := map[string]any{"text": "hello", "n": float64(3)}

	for _, format := range []string{"json", "yaml"} {
		for _, encoding := range []string{"utf-8", "base64", "none"} {
			encoded, err := EncodePayload(payload, encoding, format)
			require.NoError(t, err, "%s/%s", encoding, format)
			decoded, err := DecodePayload(encoded, encoding, format)
			require.NoError(t, err, "%s/%s", encoding, format)
			if format == "yaml" {
				// yaml decodes numbers as int
				assert.Equal(t, "hello", decoded.(map[string]any)["text"])
			} else {
				assert.Equal(t, payload, decoded, "%s/%s", encoding, format)
			}
		}
	}
}

func TestEncodeText(t *testing.T) {
	encoded, err := EncodePayload("plain", "utf-8", "text")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), encoded)
}
