package model

import "encoding/xml"

// Container models META-INF/container.xml, which locates the OPF package
// document inside the archive.
type Container struct {
	XMLName   xml.Name        `xml:"container"`
	RootFiles []ContainerFile `xml:"rootfiles>rootfile"`
}

type ContainerFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// OPFPackage is the root <package> element of the OPF document.
type OPFPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata OPFMetadata `xml:"metadata"`
	Manifest Manifest    `xml:"manifest"`
	Spine    Spine       `xml:"spine"`
}

// OPFMetadata holds the Dublin Core elements the converter uses for the title
// page. Elements are namespace-qualified so both EPUB 2 and EPUB 3 packages
// parse.
type OPFMetadata struct {
	Titles   []DCElement `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators []DCElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
}

type DCElement struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
}

type Manifest struct {
	XMLName xml.Name       `xml:"manifest"`
	Items   []ManifestItem `xml:"item"`
}

type ManifestItem struct {
	ID         string `xml:"id,attr"`
	Link       string `xml:"href,attr"`
	Media      string `xml:"media-type,attr,omitempty"`
	Properties string `xml:"properties,attr,omitempty"`
}

type Spine struct {
	XMLName xml.Name    `xml:"spine"`
	Toc     string      `xml:"toc,attr,omitempty"`
	Items   []SpineItem `xml:"itemref"`
}

type SpineItem struct {
	IDref  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr,omitempty"`
}
