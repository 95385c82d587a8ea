package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// decodeDOCX reads word/document.xml and emits one line per paragraph,
// including paragraphs nested in tables.
func decodeDOCX(raw []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		if file.UncompressedSize64 > maxDocumentBytes {
			return "", fmt.Errorf("docx body exceeds %d bytes", maxDocumentBytes)
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		defer rc.Close()
		return documentText(io.LimitReader(rc, maxDocumentBytes))
	}
	return "", errors.New("docx archive has no word/document.xml")
}

func documentText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}
		switch el := token.(type) {
		case xml.StartElement:
			if el.Name.Space != wordprocessingNS {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if el.Name.Space != wordprocessingNS {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
}
