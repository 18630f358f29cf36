package content

import (
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dadebr/EpubtoPDF/model"
	"github.com/dadebr/EpubtoPDF/utils"
)

// headingLevels maps heading atoms to their visual emphasis level.
var headingLevels = map[atom.Atom]int{
	atom.H1: 1,
	atom.H2: 2,
	atom.H3: 3,
	atom.H4: 4,
	atom.H5: 5,
	atom.H6: 6,
}

// voidTags never take end tags in XHTML content documents and are excluded
// from the nesting checks. img validity is tracked separately.
var voidTags = map[string]bool{
	"img": true,
	"br":  true,
	"hr":  true,
}

func isBlockTag(name string) bool {
	switch name {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// imgFinding is the per-occurrence validation result for an <img> tag,
// produced by scanning the raw markup before the lenient DOM walk.
type imgFinding struct {
	valid   bool
	name    string
	excerpt string
	reason  string
}

// blockFinding is the per-occurrence well-formedness result for a block
// element (p, h1..h6) in the raw markup.
type blockFinding struct {
	valid   bool
	excerpt string
	reason  string
}

// NormalizeSection extracts headings, paragraphs, and images from the
// section's raw markup into sec.Blocks, preserving source order.
//
// Malformed elements are handled per the selected policy: in strict mode the
// first one fails the section with a MarkupError; in tolerant mode the
// element is skipped, a warning is recorded, and normalization continues. A
// section in which no blocks survive is not an error in either mode.
func NormalizeSection(sec *model.Section, tolerant bool) ([]model.Warning, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sec.HTML))
	if err != nil {
		if tolerant {
			return []model.Warning{{
				Section: sec.Path,
				Excerpt: utils.Excerpt(sec.HTML, 80),
				Reason:  "failed to parse section markup: " + err.Error(),
			}}, nil
		}
		return nil, &model.MarkupError{
			Section: sec.Path,
			Excerpt: utils.Excerpt(sec.HTML, 80),
			Reason:  "failed to parse section markup: " + err.Error(),
		}
	}

	imgs, blocks := scanMarkup(sec)

	n := &normalizer{
		sec:           sec,
		tolerant:      tolerant,
		imgFindings:   imgs,
		blockFindings: blocks,
	}
	for _, root := range doc.Find("body").Nodes {
		if err := n.walk(root); err != nil {
			return nil, err
		}
	}

	sec.Blocks = n.blocks
	return n.warnings, nil
}

type normalizer struct {
	sec           *model.Section
	tolerant      bool
	imgFindings   []imgFinding
	blockFindings []blockFinding
	imgIdx        int
	blockIdx      int
	blocks        []model.Block
	warnings      []model.Warning
}

// walk visits element nodes in document order. Headings and paragraphs emit
// a text block followed by any images nested within them; other containers
// are recursed into.
func (n *normalizer) walk(node *html.Node) error {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if level, ok := headingLevels[c.DataAtom]; ok {
			if err := n.handleBlockElement(c, level); err != nil {
				return err
			}
			continue
		}
		switch c.DataAtom {
		case atom.P:
			if err := n.handleBlockElement(c, 0); err != nil {
				return err
			}
		case atom.Img:
			if err := n.handleImage(); err != nil {
				return err
			}
		default:
			if err := n.walk(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleBlockElement consumes the next block occurrence from the raw-markup
// scan. An ill-formed block is skipped whole, images included; level 0 means
// a paragraph.
func (n *normalizer) handleBlockElement(c *html.Node, level int) error {
	if f := n.nextBlockFinding(); f != nil && !f.valid {
		if n.tolerant {
			n.warnings = append(n.warnings, model.Warning{
				Section: n.sec.Path,
				Excerpt: f.excerpt,
				Reason:  f.reason,
			})
			n.skipImages(c)
			return nil
		}
		return &model.MarkupError{
			Section: n.sec.Path,
			Excerpt: f.excerpt,
			Reason:  f.reason,
		}
	}
	if text := collapseText(c); text != "" {
		if level > 0 {
			n.blocks = append(n.blocks, &model.Heading{Level: level, Text: text})
		} else {
			n.blocks = append(n.blocks, &model.Paragraph{Text: text})
		}
	}
	return n.emitImages(c)
}

func (n *normalizer) nextBlockFinding() *blockFinding {
	if n.blockIdx >= len(n.blockFindings) {
		return nil
	}
	f := &n.blockFindings[n.blockIdx]
	n.blockIdx++
	return f
}

// emitImages appends image blocks for every <img> descendant of node, in
// document order.
func (n *normalizer) emitImages(node *html.Node) error {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Img {
			if err := n.handleImage(); err != nil {
				return err
			}
			continue
		}
		if err := n.emitImages(c); err != nil {
			return err
		}
	}
	return nil
}

// skipImages advances past the img occurrences inside a skipped block so the
// scan and the walk stay in step.
func (n *normalizer) skipImages(node *html.Node) {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Img {
			n.imgIdx++
			continue
		}
		n.skipImages(c)
	}
}

// handleImage consumes the next image occurrence from the raw-markup scan.
// The scan and the DOM walk see img tags in the same order because the
// lenient parser never reorders them.
func (n *normalizer) handleImage() error {
	if n.imgIdx >= len(n.imgFindings) {
		return nil
	}
	f := n.imgFindings[n.imgIdx]
	n.imgIdx++

	if f.valid {
		n.blocks = append(n.blocks, &model.Image{Name: f.name, Data: n.sec.Images[f.name]})
		return nil
	}
	if n.tolerant {
		n.warnings = append(n.warnings, model.Warning{
			Section: n.sec.Path,
			Excerpt: f.excerpt,
			Reason:  f.reason,
		})
		return nil
	}
	return &model.MarkupError{
		Section: n.sec.Path,
		Excerpt: f.excerpt,
		Reason:  f.reason,
	}
}

// scanMarkup tokenizes the raw section markup and validates, in source
// order, every <img> occurrence and the XHTML well-formedness of every block
// element. EPUB content documents are XHTML, so an img start tag that is not
// self-closed is malformed, as is a block left open or closed out of order;
// a well-formed img must also carry a src that resolves to an archive image.
func scanMarkup(sec *model.Section) ([]imgFinding, []blockFinding) {
	z := html.NewTokenizer(strings.NewReader(sec.HTML))
	var (
		imgs   []imgFinding
		blocks []blockFinding

		open    bool
		openTag string
		openRaw string
		openBad string
		stack   []string
	)

	closeBlock := func(reason string) {
		if openBad != "" {
			reason = openBad
		}
		blocks = append(blocks, blockFinding{valid: reason == "", excerpt: openRaw, reason: reason})
		open, openTag, openRaw, openBad, stack = false, "", "", "", nil
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if open {
				closeBlock(openTag + " tag is not closed")
			}
			return imgs, blocks
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			nameBytes, hasAttr := z.TagName()
			name := string(nameBytes)
			raw := utils.Excerpt(string(z.Raw()), 80)

			if name == "img" {
				imgs = append(imgs, scanImg(sec, z, tt, raw, hasAttr))
				continue
			}
			if voidTags[name] {
				continue
			}
			if isBlockTag(name) {
				if tt == html.SelfClosingTagToken {
					blocks = append(blocks, blockFinding{valid: true, excerpt: raw})
					continue
				}
				if open {
					closeBlock(openTag + " tag is not closed")
				}
				open, openTag, openRaw = true, name, raw
				continue
			}
			if open && tt == html.StartTagToken {
				stack = append(stack, name)
			}
		case html.EndTagToken:
			nameBytes, _ := z.TagName()
			name := string(nameBytes)
			if !open {
				continue
			}
			if name == openTag {
				if len(stack) > 0 && openBad == "" {
					openBad = "unclosed <" + stack[len(stack)-1] + "> tag inside " + openTag
				}
				closeBlock("")
				continue
			}
			if len(stack) > 0 && stack[len(stack)-1] == name {
				stack = stack[:len(stack)-1]
				continue
			}
			if name == "body" || name == "html" || isBlockTag(name) {
				closeBlock(openTag + " tag is not closed")
				continue
			}
			if openBad == "" {
				openBad = "mismatched </" + name + "> tag inside " + openTag
			}
		}
	}
}

// scanImg validates one <img> occurrence at the tokenizer's current token.
func scanImg(sec *model.Section, z *html.Tokenizer, tt html.TokenType, raw string, hasAttr bool) imgFinding {
	if tt == html.StartTagToken {
		return imgFinding{excerpt: raw, reason: "img tag is not self-closed"}
	}
	src := ""
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "src" {
			src = string(val)
		}
	}
	if src == "" {
		return imgFinding{excerpt: raw, reason: "img has no src attribute"}
	}
	resolved, ok := resolveImage(sec, src)
	if !ok {
		return imgFinding{excerpt: raw, reason: "image not found in archive: " + src}
	}
	return imgFinding{valid: true, name: resolved, excerpt: raw}
}

// resolveImage maps an img src (relative to the section document) to a key
// in the section's image map, falling back to a base-name match for archives
// with inconsistent relative paths. Ties on base name resolve to the
// lexically smallest key so repeated runs pick the same image.
func resolveImage(sec *model.Section, src string) (string, bool) {
	key := path.Clean(path.Join(path.Dir(sec.Path), src))
	if _, ok := sec.Images[key]; ok {
		return key, true
	}
	base := path.Base(src)
	var matches []string
	for name := range sec.Images {
		if path.Base(name) == base {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// collapseText concatenates the text descendants of node and normalizes
// whitespace runs to single spaces.
func collapseText(node *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(node)
	return strings.Join(strings.Fields(b.String()), " ")
}
