package services

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// SetJSONField sets the value at path in the JSON body produced so far.
// An empty body starts from an empty object.
func SetJSONField(path string, value any) rule.Action {
	return rule.ActionFunc(func(b *rule.ResponseBuilder) error {
		body := b.Body
		if len(body) == 0 {
			body = []byte("{}")
		}
		out, err := sjson.SetBytes(body, path, value)
		if err != nil {
			return fmt.Errorf("failed to set JSON field %q: %w", path, err)
		}
		b.Body = out
		return nil
	})
}
