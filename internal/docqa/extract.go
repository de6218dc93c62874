package docqa

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Extract turns uploaded bytes into plain text. Invalid UTF-8 sequences
// are dropped. HTML is reduced to its readable article text.
func Extract(name, contentType string, data []byte) (string, error) {
	text := strings.ToValidUTF8(string(data), "")
	if !isHTML(name, contentType) {
		return strings.TrimSpace(text), nil
	}

	pageURL := &url.URL{Scheme: "file", Path: "/" + path.Base(name)}
	article, err := readability.FromReader(bytes.NewReader([]byte(text)), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract html: %w", err)
	}
	if out := strings.TrimSpace(article.TextContent); out != "" {
		return out, nil
	}
	return strings.TrimSpace(text), nil
}

func isHTML(name, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") {
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}
