package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/dadebr/EpubtoPDF/model"
)

const expectedMimetype = "application/epub+zip"

// Read opens the EPUB archive at the given path and extracts its metadata,
// spine documents, and image resources in reading order. The archive handle
// is released before returning, on every path.
func Read(inputPath string) (*model.Book, error) {
	zrc, err := zip.OpenReader(inputPath)
	if err != nil {
		return nil, &model.ArchiveError{Path: inputPath, Err: err}
	}
	defer zrc.Close()

	index := make(map[string]*zip.File, len(zrc.File))
	for _, f := range zrc.File {
		index[path.Clean(f.Name)] = f
	}

	if f, ok := index["mimetype"]; ok {
		data, err := readZipFile(f)
		if err != nil {
			return nil, &model.ArchiveError{Path: inputPath, Err: fmt.Errorf("failed to read mimetype: %v", err)}
		}
		if mt := strings.TrimSpace(string(data)); mt != expectedMimetype {
			return nil, &model.ArchiveError{Path: inputPath, Err: fmt.Errorf("unexpected mimetype %q", mt)}
		}
	}

	opfPath, err := findOPFPath(index)
	if err != nil {
		return nil, &model.ManifestError{Path: inputPath, Err: err}
	}

	opfFile, ok := index[opfPath]
	if !ok {
		return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("OPF file not found in archive: %s", opfPath)}
	}
	opfData, err := readZipFile(opfFile)
	if err != nil {
		return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("failed to read OPF file: %v", err)}
	}

	pkg := &model.OPFPackage{}
	if err := xml.Unmarshal(opfData, pkg); err != nil {
		return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("failed to parse OPF file: %v", err)}
	}

	opfDir := path.Dir(opfPath)
	manifestByID := make(map[string]model.ManifestItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		manifestByID[item.ID] = item
	}

	images := make(map[string][]byte)
	for _, item := range pkg.Manifest.Items {
		if !strings.HasPrefix(item.Media, "image/") {
			continue
		}
		href := resolveHref(opfDir, item.Link)
		f, ok := index[href]
		if !ok {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("failed to read image %s: %v", href, err)}
		}
		images[href] = data
	}

	book := &model.Book{
		Sections: make([]*model.Section, 0, len(pkg.Spine.Items)),
	}
	if len(pkg.Metadata.Titles) > 0 {
		book.Title = strings.TrimSpace(pkg.Metadata.Titles[0].Value)
	}
	for _, creator := range pkg.Metadata.Creators {
		if name := strings.TrimSpace(creator.Value); name != "" {
			book.Authors = append(book.Authors, name)
		}
	}

	for _, ref := range pkg.Spine.Items {
		item, ok := manifestByID[ref.IDref]
		if !ok {
			return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("spine references unknown manifest item: %s", ref.IDref)}
		}
		href := resolveHref(opfDir, item.Link)
		f, ok := index[href]
		if !ok {
			return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("spine document not found in archive: %s", href)}
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, &model.ManifestError{Path: inputPath, Err: fmt.Errorf("failed to read spine document %s: %v", href, err)}
		}
		book.Sections = append(book.Sections, &model.Section{
			Path:   href,
			HTML:   string(data),
			Images: images,
		})
	}

	return book, nil
}

// findOPFPath locates the OPF package document via META-INF/container.xml,
// falling back to scanning the archive for a .opf entry when the container is
// missing or empty.
func findOPFPath(index map[string]*zip.File) (string, error) {
	if f, ok := index["META-INF/container.xml"]; ok {
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("failed to read container.xml: %v", err)
		}
		container := &model.Container{}
		if err := xml.Unmarshal(data, container); err != nil {
			return "", fmt.Errorf("failed to parse container.xml: %v", err)
		}
		for _, rf := range container.RootFiles {
			if rf.FullPath != "" {
				return path.Clean(rf.FullPath), nil
			}
		}
	}
	for name := range index {
		if strings.EqualFold(path.Ext(name), ".opf") {
			return name, nil
		}
	}
	return "", fmt.Errorf("no OPF package document found")
}

// resolveHref turns a manifest href (relative to the OPF directory, possibly
// percent-encoded) into a cleaned archive-internal path.
func resolveHref(opfDir, href string) string {
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if opfDir == "." {
		return path.Clean(href)
	}
	return path.Clean(path.Join(opfDir, href))
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
