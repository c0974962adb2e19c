package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

const containerPath = "META-INF/container.xml"

type containerXML struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageXML struct {
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc string `xml:"toc,attr"`
	} `xml:"spine"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Item is a manifest entry resolved against the archive.
type Item struct {
	ID         string
	Name       string
	Path       string
	MediaType  string
	Properties []string
}

func (i Item) IsDocument() bool {
	switch strings.ToLower(i.MediaType) {
	case "application/xhtml+xml", "text/html":
		return true
	default:
		return false
	}
}

func (i Item) hasProperty(p string) bool {
	for _, prop := range i.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

// Book is an opened EPUB container.
type Book struct {
	archive  *zip.ReadCloser
	files    map[string]*zip.File
	items    []Item
	spineTOC string
}

func openBook(filename string) (*Book, error) {
	rc, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	book := &Book{
		archive: rc,
		files:   make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		book.files[f.Name] = f
	}

	if err := book.loadPackage(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return book, nil
}

func (b *Book) Close() error {
	return b.archive.Close()
}

// Items returns manifest entries in stored order.
func (b *Book) Items() []Item {
	return b.items
}

func (b *Book) loadPackage() error {
	var container containerXML
	if err := b.decodeXML(containerPath, &container); err != nil {
		return fmt.Errorf("read container: %w", err)
	}
	opfPath := ""
	for _, rf := range container.Rootfiles {
		if strings.TrimSpace(rf.FullPath) != "" {
			opfPath = strings.TrimSpace(rf.FullPath)
			break
		}
	}
	if opfPath == "" {
		return errors.New("container lists no package document")
	}

	var pkg packageXML
	if err := b.decodeXML(opfPath, &pkg); err != nil {
		return fmt.Errorf("read package document: %w", err)
	}

	base := path.Dir(opfPath)
	b.items = make([]Item, 0, len(pkg.Manifest.Items))
	for _, mi := range pkg.Manifest.Items {
		name := mi.Href
		if unescaped, err := url.PathUnescape(mi.Href); err == nil {
			name = unescaped
		}
		b.items = append(b.items, Item{
			ID:         mi.ID,
			Name:       name,
			Path:       resolve(base, name),
			MediaType:  mi.MediaType,
			Properties: strings.Fields(mi.Properties),
		})
	}
	b.spineTOC = pkg.Spine.Toc
	return nil
}

func (b *Book) ReadItem(item Item) ([]byte, error) {
	return b.readFile(item.Path)
}

func (b *Book) readFile(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("missing archive entry %q", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %q: %w", name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archive entry %q: %w", name, err)
	}
	return raw, nil
}

func (b *Book) decodeXML(name string, v any) error {
	raw, err := b.readFile(name)
	if err != nil {
		return err
	}
	return unmarshalLenient(raw, v)
}

// unmarshalLenient tolerates HTML entities and unclosed tags found in real-world books.
func unmarshalLenient(raw []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode xml: %w", err)
	}
	return nil
}

func resolve(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if base == "." || base == "" {
		return path.Clean(href)
	}
	return path.Join(base, href)
}
