// Package prompt validates inbound assistant requests.
//
// A request body must be a JSON object carrying a non-blank string "prompt".
// Shape is checked against a compiled JSON Schema; blankness is checked after
// trimming since the schema has no notion of Unicode whitespace.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidInput marks a request that carries no usable prompt.
var ErrInvalidInput = errors.New("invalid input")

const requestSchema = `{
	"type": "object",
	"required": ["prompt"],
	"properties": {
		"prompt": {"type": "string", "minLength": 1}
	}
}`

var schema = jsonschema.MustCompileString("prompt-request.json", requestSchema)

// Parse extracts the trimmed prompt from a raw request body. Every failure
// wraps ErrInvalidInput.
func Parse(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("%w: empty request body", ErrInvalidInput)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: decoding body: %v", ErrInvalidInput, err)
	}
	if dec.More() {
		return "", fmt.Errorf("%w: trailing data after JSON object", ErrInvalidInput)
	}

	if err := schema.Validate(doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	raw, _ := doc.(map[string]interface{})["prompt"].(string)
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", fmt.Errorf("%w: prompt is blank", ErrInvalidInput)
	}
	return p, nil
}
