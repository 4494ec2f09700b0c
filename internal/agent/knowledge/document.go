package knowledge

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxDocumentSize bounds the FAQ document sent to the extraction model.
const maxDocumentSize = 20 << 20

// Document is the raw FAQ source handed to the extractor.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// LoadDocument reads the FAQ document from a local path or an http(s) URL.
func LoadDocument(ctx context.Context, source string) (*Document, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("knowledge source is empty")
	}
	if isURL(source) {
		return fetchDocument(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read knowledge document: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("knowledge document %s exceeds %d bytes", source, maxDocumentSize)
	}
	return &Document{Name: filepath.Base(source), MIMEType: mimeTypeOf(source), Data: data}, nil
}

func fetchDocument(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build knowledge request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch knowledge document: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read knowledge document: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("knowledge document %s exceeds %d bytes", url, maxDocumentSize)
	}

	name := documentName(url)
	mimeType := mimeTypeOf(name)
	if ct := resp.Header.Get("Content-Type"); ct != "" && mimeType == "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = mt
		}
	}
	return &Document{Name: name, MIMEType: mimeType, Data: data}, nil
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// documentName returns the base name of a path or URL, ignoring query and fragment.
func documentName(source string) string {
	if isURL(source) {
		s := source
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		return path.Base(strings.TrimRight(s, "/"))
	}
	return filepath.Base(source)
}

func mimeTypeOf(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	default:
		if mt := mime.TypeByExtension(ext); mt != "" {
			if parsed, _, err := mime.ParseMediaType(mt); err == nil {
				return parsed
			}
		}
	}
	return "application/octet-stream"
}
