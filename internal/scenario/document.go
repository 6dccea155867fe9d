// Package scenario materializes the per-combination simulator inputs: a
// derived route document with the swept attribute values applied, and a run
// configuration pointing the simulator at that document and at its output
// destinations.
package scenario

import (
	"errors"
	"strings"

	"github.com/beevik/etree"

	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
)

const xmlDeclaration = `version="1.0" encoding="UTF-8"`

var (
	// ErrNoRoot is returned for a document without a root element.
	ErrNoRoot = errors.New("document has no root element")
	// ErrTrailingContent is returned for a document with an element or text
	// after its root element.
	ErrTrailingContent = errors.New("content after root element")
)

// ParseDocument parses data as a well-formed XML document with exactly one
// root element. Comments, processing instructions and whitespace may
// surround the root.
func ParseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	roots := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			roots++
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return nil, ErrTrailingContent
			}
		}
	}
	switch {
	case roots == 0:
		return nil, ErrNoRoot
	case roots > 1:
		return nil, ErrTrailingContent
	}
	return doc, nil
}

// LoadDocument reads an XML document. A missing or malformed file is a
// configuration fault, since every later phase depends on it.
func LoadDocument(fsys fsutil.FileSystem, path string) (*etree.Document, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, faults.New(faults.KindConfiguration, "read document", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, faults.New(faults.KindConfiguration, "parse document", path, err)
	}
	return doc, nil
}

// WriteDocument serializes doc with an XML declaration and writes it to
// path. Failure is a write fault naming the path.
func WriteDocument(fsys fsutil.FileSystem, doc *etree.Document, path string) error {
	out := doc.Copy()
	ensureDeclaration(out)
	data, err := out.WriteToBytes()
	if err != nil {
		return faults.New(faults.KindWrite, "serialize document", path, err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return faults.New(faults.KindWrite, "write document", path, err)
	}
	return nil
}

// ensureDeclaration prepends an XML declaration unless one is present.
func ensureDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	doc.InsertChildAt(0, &etree.ProcInst{Target: "xml", Inst: xmlDeclaration})
}
