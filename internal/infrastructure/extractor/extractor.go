package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

// maxDocumentBytes caps what a single upload may expand to in memory.
const maxDocumentBytes = 64 << 20

const xlsxMIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type decodeFunc func(raw []byte) (string, error)

// Extractor turns stored uploads into plain text, dispatching on file extension and then MIME type.
type Extractor struct {
	storage ports.ObjectStorage
	byExt   map[string]decodeFunc
	byMIME  map[string]decodeFunc
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{
		storage: storage,
		byExt: map[string]decodeFunc{
			".txt":  decodePlainText,
			".md":   decodePlainText,
			".pdf":  decodePDF,
			".xlsx": decodeSpreadsheet,
			".docx": decodeDOCX,
		},
		byMIME: map[string]decodeFunc{
			"text/plain":      decodePlainText,
			"text/markdown":   decodePlainText,
			"application/pdf": decodePDF,
			xlsxMIMEType:      decodeSpreadsheet,
			docxMIMEType:      decodeDOCX,
		},
	}
}

// Supports reports whether an upload with this name and type can be extracted.
func (e *Extractor) Supports(filename, mimeType string) bool {
	return e.decoderFor(filename, mimeType) != nil
}

func (e *Extractor) Extract(ctx context.Context, job domain.IngestionJob) (string, error) {
	name := job.Source
	if name == "" {
		name = job.StorageKey
	}
	decode := e.decoderFor(name, job.MimeType)
	if decode == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("unsupported document type: %s", name))
	}

	reader, err := e.storage.Open(ctx, job.StorageKey)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(raw) > maxDocumentBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("document %s exceeds %d bytes", name, maxDocumentBytes))
	}

	text, err := decode(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("%s: %w", name, err))
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) decoderFor(filename, mimeType string) decodeFunc {
	if decode, ok := e.byExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return decode
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return e.byMIME[mimeType]
}
