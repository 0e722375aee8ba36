package stream

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/ingest"
	"github.com/RishiKendai/veritas/internal/models"
)

// StreamMessage is a Redis stream entry with its string fields
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseIngestRequest reads a corpus ingestion entry. Fields: name, content,
// optional format (defaults to the name's extension) and optional encoding
// ("base64" for binary formats, "text" otherwise).
func ParseIngestRequest(msg *StreamMessage) (*models.IngestRequest, error) {
	name := strings.TrimSpace(msg.Fields["name"])
	if name == "" {
		return nil, fmt.Errorf("message %s: name is required", msg.ID)
	}

	content, ok := msg.Fields["content"]
	if !ok || content == "" {
		return nil, fmt.Errorf("message %s: content is required", msg.ID)
	}

	format := extract.NormalizeFormat(msg.Fields["format"])
	if format == "" {
		format = extract.FormatFromFilename(name)
	}
	if !extract.IsSupported(format) {
		return nil, fmt.Errorf("message %s: unsupported format %q", msg.ID, format)
	}

	var data []byte
	switch encoding := strings.ToLower(msg.Fields["encoding"]); encoding {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("message %s: invalid base64 content: %w", msg.ID, err)
		}
		data = decoded
	case "", "text":
		data = []byte(content)
	default:
		return nil, fmt.Errorf("message %s: unknown encoding %q", msg.ID, encoding)
	}

	return &models.IngestRequest{
		Name:    name,
		Format:  format,
		Content: data,
		Source:  ingest.SourceStream,
	}, nil
}
