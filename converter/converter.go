package converter

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dadebr/EpubtoPDF/content"
	"github.com/dadebr/EpubtoPDF/epub"
	"github.com/dadebr/EpubtoPDF/model"
	"github.com/dadebr/EpubtoPDF/pdf"
	"github.com/dadebr/EpubtoPDF/utils"
)

// Converter sequences the read, normalize, and render stages for one
// conversion request. Each Convert call is independent; converters may run
// concurrently as long as they target different output paths.
type Converter struct {
	progress func(int)
}

func New() *Converter {
	return &Converter{}
}

// SetProgressCallback registers a callback receiving progress percentages
// (10 after validation, 30 after reading, 70 after normalization, 100 on
// completion).
func (c *Converter) SetProgressCallback(fn func(int)) {
	c.progress = fn
}

func (c *Converter) updateProgress(p int) {
	if c.progress != nil {
		c.progress(p)
	}
}

// Convert reads the EPUB at inputPath, normalizes its sections under the
// given policy, and renders the result to outputPath.
//
// Reader and renderer failures always abort with a typed error; normalizer
// failures abort only in strict mode. In tolerant mode skipped elements are
// collected as warnings on the returned report. inputPath may be an http(s)
// URL, in which case the archive is downloaded to a temporary file first.
func (c *Converter) Convert(inputPath, outputPath string, tolerant bool) (*model.ConversionReport, error) {
	if isRemote(inputPath) {
		tmpPath, cleanup, err := fetchRemote(inputPath)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		inputPath = tmpPath
	} else {
		if _, err := os.Stat(inputPath); err != nil {
			return nil, &model.ArchiveError{Path: inputPath, Err: err}
		}
		if !strings.EqualFold(filepath.Ext(inputPath), ".epub") {
			return nil, &model.ArchiveError{Path: inputPath, Err: fmt.Errorf("input file must be an EPUB file")}
		}
	}
	c.updateProgress(10)

	book, err := epub.Read(inputPath)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"input":    inputPath,
		"title":    book.Title,
		"sections": len(book.Sections),
	}).Debug("EPUB read")
	c.updateProgress(30)

	report := &model.ConversionReport{OutputPath: outputPath}
	for _, sec := range book.Sections {
		warnings, err := content.NormalizeSection(sec, tolerant)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			logrus.WithFields(logrus.Fields{
				"section": w.Section,
				"excerpt": w.Excerpt,
				"reason":  w.Reason,
			}).Warn("skipped malformed element")
		}
		report.Warnings = append(report.Warnings, warnings...)
	}
	c.updateProgress(70)

	if err := pdf.Render(book, outputPath); err != nil {
		// A partial output file may exist if creation succeeded before the
		// failure; never leave one behind.
		os.Remove(outputPath)
		return nil, err
	}
	c.updateProgress(100)

	report.Success = true
	return report, nil
}

func isRemote(inputPath string) bool {
	return strings.HasPrefix(inputPath, "http://") || strings.HasPrefix(inputPath, "https://")
}

// fetchRemote downloads a remote EPUB to a uuid-named temporary file and
// returns its path with a cleanup func. Download failures are reported as
// archive errors against the URL.
func fetchRemote(rawURL string) (string, func(), error) {
	resp, err := utils.Request().Get(rawURL)
	if err != nil {
		return "", nil, &model.ArchiveError{Path: rawURL, Err: fmt.Errorf("failed to download: %v", err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", nil, &model.ArchiveError{Path: rawURL, Err: fmt.Errorf("failed to download: %v", resp.Status())}
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("epubtopdf-%s.epub", uuid.New().String()))
	if err := os.WriteFile(tmpPath, resp.Body(), 0644); err != nil {
		return "", nil, &model.ArchiveError{Path: rawURL, Err: fmt.Errorf("failed to write download: %v", err)}
	}
	return tmpPath, func() { os.Remove(tmpPath) }, nil
}
