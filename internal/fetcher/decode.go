package fetcher

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// htmlContentTypes are the media types accepted for the initial document.
var htmlContentTypes = []string{"text/html", "application/xhtml+xml"}

// IsHTML reports whether a media type denotes an HTML document
func IsHTML(mediaType string) bool {
	for _, accepted := range htmlContentTypes {
		if strings.Contains(mediaType, accepted) {
			return true
		}
	}
	return false
}

// DecodeHTML converts raw page bytes to UTF-8, sniffing the encoding from
// the Content-Type header, a byte-order mark, or a meta tag in the first
// kilobyte of content.
func DecodeHTML(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", errorwrapper.WrapError(err, "failed to detect character encoding")
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", errorwrapper.WrapError(err, "failed to decode document body")
	}

	return string(decoded), nil
}
