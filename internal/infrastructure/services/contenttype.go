package services

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	// ContentTypeJSON is set by JSON responses.
	ContentTypeJSON = "application/json; charset=UTF-8"
	// ContentTypeXML is set by XML responses.
	ContentTypeXML = "application/xml; charset=UTF-8"
)

// InferContentType determines the content type from explicit header, file extension, or body sniffing.
func InferContentType(explicit string, bodyFile string, body []byte) string {
	if explicit != "" {
		return explicit
	}

	if bodyFile != "" {
		ext := strings.ToLower(filepath.Ext(bodyFile))
		switch ext {
		case ".json":
			return "application/json"
		case ".xml":
			return "application/xml"
		case ".html", ".htm":
			return "text/html"
		case ".txt":
			return "text/plain"
		case ".csv":
			return "text/csv"
		}
	}

	if len(body) > 0 {
		return http.DetectContentType(body)
	}

	return "application/octet-stream"
}

// WithCharset sets the charset parameter of contentType, replacing any
// existing one. An unparsable content type is returned unchanged.
func WithCharset(contentType, charset string) string {
	if charset == "" {
		return contentType
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	params["charset"] = charset
	return mime.FormatMediaType(mediaType, params)
}
