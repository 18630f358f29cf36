package converter

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadebr/EpubtoPDF/model"
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const sampleOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Sample Book</dc:title>
    <dc:creator>Jane Doe</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="Text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="pic" href="Images/pic.png" media-type="image/png"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

const wellFormedChapter = `<html><body>
<h1>Chapter One</h1>
<p>First paragraph.</p>
<p>Second paragraph.</p>
</body></html>`

const brokenChapter = `<html><body>
<p>Intro text.<img src="../Images/pic.png"></p>
<p>Closing text.</p>
</body></html>`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func zipEpub(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte("application/epub+zip"))
	require.NoError(t, err)

	for name, data := range files {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func epubBytes(t *testing.T, chapter string) []byte {
	t.Helper()
	return zipEpub(t, map[string][]byte{
		"META-INF/container.xml":    []byte(containerXML),
		"OEBPS/content.opf":         []byte(sampleOPF),
		"OEBPS/Text/chapter1.xhtml": []byte(chapter),
		"OEBPS/Images/pic.png":      pngBytes(t),
	})
}

func writeEpub(t *testing.T, name, chapter string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fp, epubBytes(t, chapter), 0644))
	return fp
}

func TestConvertStrict(t *testing.T) {
	input := writeEpub(t, "sample.epub", wellFormedChapter)
	output := filepath.Join(filepath.Dir(input), "sample.pdf")

	var progress []int
	conv := New()
	conv.SetProgressCallback(func(p int) { progress = append(progress, p) })

	report, err := conv.Convert(input, output, false)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, output, report.OutputPath)
	assert.FileExists(t, output)
	assert.Equal(t, []int{10, 30, 70, 100}, progress)
}

func TestConvertTolerantMalformedImg(t *testing.T) {
	input := writeEpub(t, "broken.epub", brokenChapter)
	output := filepath.Join(filepath.Dir(input), "broken.pdf")

	report, err := New().Convert(input, output, true)
	require.NoError(t, err)

	assert.True(t, report.Success)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", report.Warnings[0].Section)
	assert.FileExists(t, output)
}

func TestConvertStrictMalformedImg(t *testing.T) {
	input := writeEpub(t, "broken.epub", brokenChapter)
	output := filepath.Join(filepath.Dir(input), "broken.pdf")

	_, err := New().Convert(input, output, false)
	var markupErr *model.MarkupError
	require.ErrorAs(t, err, &markupErr)
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", markupErr.Section)
	assert.NoFileExists(t, output)
}

func TestConvertZeroSections(t *testing.T) {
	const emptySpineOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Empty Book</dc:title>
  </metadata>
  <manifest/>
  <spine/>
</package>`

	input := filepath.Join(t.TempDir(), "empty.epub")
	data := zipEpub(t, map[string][]byte{
		"META-INF/container.xml": []byte(containerXML),
		"OEBPS/content.opf":      []byte(emptySpineOPF),
	})
	require.NoError(t, os.WriteFile(input, data, 0644))

	output := filepath.Join(filepath.Dir(input), "empty.pdf")
	report, err := New().Convert(input, output, false)
	require.NoError(t, err)

	// A book with no spine entries still yields a valid PDF with the
	// title page.
	assert.True(t, report.Success)
	assert.Empty(t, report.Warnings)
	assert.FileExists(t, output)

	pdfData, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfData, []byte("%PDF-")))
}

func TestConvertMissingInput(t *testing.T) {
	_, err := New().Convert(filepath.Join(t.TempDir(), "nope.epub"), "out.pdf", false)
	var archiveErr *model.ArchiveError
	require.ErrorAs(t, err, &archiveErr)
}

func TestConvertWrongExtension(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(fp, []byte("x"), 0644))

	_, err := New().Convert(fp, "out.pdf", false)
	var archiveErr *model.ArchiveError
	require.ErrorAs(t, err, &archiveErr)
}

func TestConvertRemoteInput(t *testing.T) {
	data := epubBytes(t, wellFormedChapter)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/epub+zip")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "remote.pdf")
	report, err := New().Convert(srv.URL+"/sample.epub", output, false)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.FileExists(t, output)
}

func TestConvertRemoteInputNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New().Convert(srv.URL+"/missing.epub", filepath.Join(t.TempDir(), "out.pdf"), false)
	var archiveErr *model.ArchiveError
	require.ErrorAs(t, err, &archiveErr)
}
