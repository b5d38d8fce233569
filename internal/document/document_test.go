package document_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter-labs/jobhunter/internal/document"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Ada Lovelace</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Skills: </w:t></w:r><w:r><w:t>Go, AWS</w:t><w:tab/><w:t>SQL</w:t></w:r></w:p>
  </w:body>
</w:document>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func buildDocx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": relsXML,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText_PlainText(t *testing.T) {
	text, err := document.ExtractText(document.MIMEText, []byte("Go developer"))
	require.NoError(t, err)
	assert.Equal(t, "Go developer", text)
}

func TestExtractText_Docx(t *testing.T) {
	text, err := document.ExtractText(document.MIMEDOCX, buildDocx(t))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace\nSkills: Go, AWS\tSQL", text)
}

func TestExtractText_Errors(t *testing.T) {
	_, err := document.ExtractText("image/png", []byte{0x89})
	var vErr *jherrors.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = document.ExtractText(document.MIMEPDF, []byte("not a pdf"))
	assert.Error(t, err)

	_, err = document.ExtractText(document.MIMEDOCX, []byte("not a zip"))
	assert.Error(t, err)
}

func TestMIMEFromPath(t *testing.T) {
	for path, want := range map[string]string{
		"resume.PDF":       document.MIMEPDF,
		"cv.docx":          document.MIMEDOCX,
		"job.txt":          document.MIMEText,
		"notes/profile.md": document.MIMEText,
	} {
		got, err := document.MIMEFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := document.MIMEFromPath("resume.doc")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(txt, []byte("Required: Go."), 0o600))
	text, err := document.ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, "Required: Go.", text)

	docxPath := filepath.Join(dir, "resume.docx")
	require.NoError(t, os.WriteFile(docxPath, buildDocx(t), 0o600))
	text, err = document.ReadFile(docxPath)
	require.NoError(t, err)
	assert.Contains(t, text, "Ada Lovelace")

	_, err = document.ReadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
