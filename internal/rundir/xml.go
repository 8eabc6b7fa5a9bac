package rundir

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"seqwatch/internal/services"
)

// Document holds the direct children of an XML root element. Lookups match
// the first child with a given local name, mirroring a shallow find.
type Document struct {
	Root     string
	children []element
}

type element struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

type rootElement struct {
	XMLName  xml.Name
	Children []element `xml:",any"`
}

// Decode parses r as a single XML document.
func Decode(r io.Reader) (*Document, error) {
	var root rootElement
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("no element found")
		}
		return nil, err
	}
	return &Document{Root: root.XMLName.Local, children: root.Children}, nil
}

// ReadDocument opens and parses path. Open failures are tagged not-found and
// decode failures are tagged as parse errors.
func ReadDocument(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.FailWith(services.ErrNotFound, err, "%s does not exist", path)
	}
	defer file.Close()
	doc, err := Decode(file)
	if err != nil {
		return nil, services.FailWith(services.ErrParse, err, "%s: %v", path, err)
	}
	return doc, nil
}

// Find returns the trimmed text of the first direct child named name.
func (d *Document) Find(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, child := range d.children {
		if child.XMLName.Local == name {
			return strings.TrimSpace(child.Text), true
		}
	}
	return "", false
}
