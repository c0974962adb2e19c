// Package epubtest assembles small EPUB files for tests.
package epubtest

import (
	"archive/zip"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"testing"
)

type NavPoint struct {
	Title    string
	Children []NavPoint
}

// Document is a content file stored under OEBPS/. Body is inserted inside <body>.
type Document struct {
	Name  string
	Title string
	Body  string
}

type Options struct {
	Nav            []NavPoint
	UseNavDocument bool
	Documents      []Document
}

func Write(tb testing.TB, path string, opts Options) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		tb.Fatalf("create mimetype entry: %v", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		tb.Fatalf("write mimetype entry: %v", err)
	}

	writeEntry(tb, zw, "META-INF/container.xml", `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine strings.Builder
	spineTOC := ""
	if opts.UseNavDocument {
		manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
		writeEntry(tb, zw, "OEBPS/nav.xhtml", navDocument(opts.Nav))
	} else {
		spineTOC = ` toc="ncx"`
		manifest.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
		writeEntry(tb, zw, "OEBPS/toc.ncx", ncxDocument(opts.Nav))
	}
	for i, doc := range opts.Documents {
		id := fmt.Sprintf("doc%d", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, escapePath(doc.Name))
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		writeEntry(tb, zw, "OEBPS/"+doc.Name, xhtmlDocument(doc))
	}

	writeEntry(tb, zw, "OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">test-book</dc:identifier>
    <dc:title>Test</dc:title>
  </metadata>
  <manifest>
%s  </manifest>
  <spine%s>
%s  </spine>
</package>`, manifest.String(), spineTOC, spine.String()))

	if err := zw.Close(); err != nil {
		tb.Fatalf("close epub: %v", err)
	}
}

func writeEntry(tb testing.TB, zw *zip.Writer, name, content string) {
	tb.Helper()
	w, err := zw.Create(name)
	if err != nil {
		tb.Fatalf("create entry %s: %v", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		tb.Fatalf("write entry %s: %v", name, err)
	}
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func xhtmlDocument(doc Document) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>%s</title></head>
<body>%s</body>
</html>`, html.EscapeString(doc.Title), doc.Body)
}

func ncxDocument(points []NavPoint) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
`)
	counter := 0
	var write func(points []NavPoint, depth int)
	write = func(points []NavPoint, depth int) {
		indent := strings.Repeat("  ", depth+2)
		for _, p := range points {
			counter++
			fmt.Fprintf(&sb, "%s<navPoint id=\"np%d\" playOrder=\"%d\">\n", indent, counter, counter)
			fmt.Fprintf(&sb, "%s  <navLabel><text>%s</text></navLabel>\n", indent, html.EscapeString(p.Title))
			fmt.Fprintf(&sb, "%s  <content src=\"p%d.xhtml\"/>\n", indent, counter)
			write(p.Children, depth+1)
			fmt.Fprintf(&sb, "%s</navPoint>\n", indent)
		}
	}
	write(points, 0)
	sb.WriteString("  </navMap>\n</ncx>")
	return sb.String()
}

func navDocument(points []NavPoint) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>목차</title></head>
<body>
<nav epub:type="landmarks"><ol><li><a href="cover.xhtml">Cover</a></li></ol></nav>
<nav epub:type="toc">
`)
	var write func(points []NavPoint)
	write = func(points []NavPoint) {
		sb.WriteString("<ol>\n")
		for i, p := range points {
			fmt.Fprintf(&sb, "<li><a href=\"p%d.xhtml\">%s</a>", i+1, html.EscapeString(p.Title))
			if len(p.Children) > 0 {
				write(p.Children)
			}
			sb.WriteString("</li>\n")
		}
		sb.WriteString("</ol>\n")
	}
	write(points)
	sb.WriteString("</nav>\n</body>\n</html>")
	return sb.String()
}
