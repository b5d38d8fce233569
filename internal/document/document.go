// Package document extracts plain text from candidate documents (resumes,
// cover letters, job descriptions) so they can be scored by the ATS engine.
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

// Supported MIME types.
const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var extensionMIME = map[string]string{
	".txt":      MIMEText,
	".text":     MIMEText,
	".md":       MIMEText,
	".markdown": MIMEText,
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
}

// MIMEFromPath maps a file extension to one of the supported MIME types.
func MIMEFromPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := extensionMIME[ext]; ok {
		return mime, nil
	}
	return "", jherrors.NewValidationError(fmt.Sprintf("unsupported document extension '%s' for '%s'", ext, path), nil)
}

// ReadFile reads path and extracts its text according to its extension.
func ReadFile(path string) (string, error) {
	mime, err := MIMEFromPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document '%s': %w", path, err)
	}
	return ExtractText(mime, data)
}

// ExtractText returns the text content of data. Unsupported types yield a
// ValidationError.
func ExtractText(mime string, data []byte) (string, error) {
	switch mime {
	case MIMEText:
		return string(data), nil
	case MIMEPDF:
		return extractPDFText(data)
	case MIMEDOCX:
		return extractDocxText(data)
	default:
		return "", jherrors.NewValidationError(fmt.Sprintf("unsupported file type: %s", mime), nil)
	}
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return wordXMLText(doc.Editable().GetContent())
}

// wordXMLText flattens WordprocessingML to text: <w:t> runs are kept, tabs
// and breaks become whitespace and each paragraph ends with a newline.
func wordXMLText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
