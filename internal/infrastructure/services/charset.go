package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// EncodeCharset re-encodes a UTF-8 body into the named IANA charset.
// An empty name or any spelling of UTF-8 returns body unchanged.
func EncodeCharset(body []byte, charset string) ([]byte, error) {
	name := strings.TrimSpace(charset)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return body, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	out, err := enc.NewEncoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body as %s: %w", charset, err)
	}
	return out, nil
}
