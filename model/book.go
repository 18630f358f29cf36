package model

// Book is the document model produced by the epub reader. Sections are in
// spine order and must not be reordered downstream.
type Book struct {
	Title    string
	Authors  []string
	Sections []*Section
}

// Section is one spine document. Path is the archive-internal source path.
// HTML and Images are filled by the reader; Blocks by the normalizer.
type Section struct {
	Path   string
	HTML   string
	Images map[string][]byte
	Blocks []Block
}

// Block is one content element of a section. The concrete types are
// Paragraph, Heading, and Image.
type Block interface {
	block()
}

type Paragraph struct {
	Text string
}

type Heading struct {
	Level int
	Text  string
}

type Image struct {
	Name string
	Data []byte
}

func (*Paragraph) block() {}

func (*Heading) block() {}

func (*Image) block() {}
