package model

import "fmt"

// ArchiveError indicates the input container is unreadable or not a valid
// EPUB archive.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("epub: invalid archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// ManifestError indicates the OPF manifest or spine is missing or cannot be
// parsed.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("epub: invalid manifest in %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// MarkupError indicates unparsable section content. It is only returned in
// strict mode; tolerant mode downgrades the same condition to a Warning.
type MarkupError struct {
	Section string
	Excerpt string
	Reason  string
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("markup: %s in %s: %q", e.Reason, e.Section, e.Excerpt)
}

// RenderError indicates the output could not be written or laid out. Render
// failures always abort regardless of mode.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
