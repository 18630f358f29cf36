package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jung-kurt/gofpdf"

	"github.com/dadebr/EpubtoPDF/model"
)

const (
	// A4 portrait with 1-inch margins, in millimeters.
	margin = 25.4

	titleSize  = 24
	authorSize = 16
	bodySize   = 11

	// Assumed pixel density for scaling embedded images.
	imageDPI = 96
)

// headingSize returns the font size for a heading level; levels beyond 3
// clamp to the smallest heading size.
func headingSize(level int) float64 {
	switch level {
	case 1:
		return 18
	case 2:
		return 16
	default:
		return 14
	}
}

type renderer struct {
	pdf      *gofpdf.Fpdf
	tr       func(string) string
	pageH    float64
	contentW float64
	outPath  string
}

// Render lays the book out into a paginated PDF at outputPath. The title
// page always renders, so a book with zero sections still produces a valid
// document. Content order is never changed: sections render in spine order
// and blocks in normalized order.
//
// Failures (unwritable output, undecodable image data) return a RenderError
// and abort regardless of the conversion's tolerance policy.
func Render(book *model.Book, outputPath string) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)

	pageW, pageH := doc.GetPageSize()
	r := &renderer{
		pdf:      doc,
		tr:       doc.UnicodeTranslatorFromDescriptor(""),
		pageH:    pageH,
		contentW: pageW - 2*margin,
		outPath:  outputPath,
	}

	r.titlePage(book)

	for _, sec := range book.Sections {
		doc.AddPage()
		for _, block := range sec.Blocks {
			if err := r.renderBlock(block); err != nil {
				return err
			}
		}
	}

	if err := doc.OutputFileAndClose(outputPath); err != nil {
		return &model.RenderError{Path: outputPath, Err: err}
	}
	return nil
}

func (r *renderer) titlePage(book *model.Book) {
	title := book.Title
	if title == "" {
		title = "Unknown Title"
	}
	author := "Unknown Author"
	if len(book.Authors) > 0 {
		author = book.Authors[0]
		for _, a := range book.Authors[1:] {
			author += ", " + a
		}
	}

	r.pdf.AddPage()
	r.pdf.Ln(40)
	r.pdf.SetFont("Helvetica", "B", titleSize)
	r.pdf.MultiCell(0, 12, r.tr(title), "", "C", false)
	r.pdf.Ln(10)
	r.pdf.SetFont("Helvetica", "", authorSize)
	r.pdf.SetTextColor(128, 128, 128)
	r.pdf.MultiCell(0, 8, r.tr("by "+author), "", "C", false)
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *renderer) renderBlock(block model.Block) error {
	switch b := block.(type) {
	case *model.Heading:
		size := headingSize(b.Level)
		r.pdf.Ln(4)
		r.pdf.SetFont("Helvetica", "B", size)
		r.pdf.MultiCell(0, size*0.5, r.tr(b.Text), "", "L", false)
		r.pdf.Ln(2)
	case *model.Paragraph:
		r.pdf.SetFont("Helvetica", "", bodySize)
		r.pdf.MultiCell(0, 5.5, r.tr(b.Text), "", "J", false)
		r.pdf.Ln(1.5)
	case *model.Image:
		return r.renderImage(b)
	}
	return nil
}

func (r *renderer) renderImage(img *model.Image) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return &model.RenderError{Path: r.outPath, Err: fmt.Errorf("failed to decode image %s: %v", img.Name, err)}
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return &model.RenderError{Path: r.outPath, Err: fmt.Errorf("image %s has zero dimensions", img.Name)}
	}

	opts := gofpdf.ImageOptions{ImageType: format}
	r.pdf.RegisterImageOptionsReader(img.Name, opts, bytes.NewReader(img.Data))
	if err := r.pdf.Error(); err != nil {
		return &model.RenderError{Path: r.outPath, Err: fmt.Errorf("failed to embed image %s: %v", img.Name, err)}
	}

	// Natural size at the assumed DPI, scaled down to fit the content area
	// while preserving aspect ratio.
	w := float64(cfg.Width) * 25.4 / imageDPI
	if w > r.contentW {
		w = r.contentW
	}
	h := w * float64(cfg.Height) / float64(cfg.Width)
	if maxH := r.pageH - 2*margin; h > maxH {
		h = maxH
		w = h * float64(cfg.Width) / float64(cfg.Height)
	}

	if r.pdf.GetY()+h > r.pageH-margin {
		r.pdf.AddPage()
	}
	x := margin + (r.contentW-w)/2
	r.pdf.ImageOptions(img.Name, x, r.pdf.GetY(), w, h, true, opts, 0, "")
	r.pdf.Ln(3)
	if err := r.pdf.Error(); err != nil {
		return &model.RenderError{Path: r.outPath, Err: fmt.Errorf("failed to place image %s: %v", img.Name, err)}
	}
	return nil
}
