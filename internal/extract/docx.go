// Package extract converts Word (.docx) documents into semantic HTML.
//
// The conversion is best-effort: headings, paragraphs, inline emphasis,
// hyperlinks, lists, tables and embedded images are kept; layout details such
// as fonts, colours and section properties are dropped.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

const (
	documentPart  = "word/document.xml"
	relsPart      = "word/_rels/document.xml.rels"
	stylesPart    = "word/styles.xml"
	numberingPart = "word/numbering.xml"

	maxListDepth = 9

	// Decompressed size caps. A small upload can inflate far beyond
	// domain.MaxUploadBytes, so every part read is bounded, per part and
	// across the whole package.
	maxPartBytes    = 4 * domain.MaxUploadBytes
	maxPackageBytes = 8 * domain.MaxUploadBytes
)

var errPartTooLarge = errors.New("part exceeds the decompressed size limit")

// Docx extracts HTML from .docx packages.
type Docx struct{}

func (Docx) Extract(data []byte) (string, error) {
	return Extract(data)
}

// Extract returns the body of a .docx document as an HTML fragment. Any
// package or XML defect is reported as domain.ErrExtraction.
func Extract(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx package: %v", domain.ErrExtraction, err)
	}

	pkg := &docxPackage{
		files:  make(map[string]*zip.File, len(zr.File)),
		budget: maxPackageBytes,
	}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}

	doc, err := pkg.tree(documentPart)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	body := doc.find("body")
	if body == nil {
		return "", fmt.Errorf("%w: document has no body", domain.ErrExtraction)
	}

	c := &converter{
		pkg:       pkg,
		rels:      map[string]relationship{},
		styles:    map[string]string{},
		numbering: map[string]map[int]string{},
	}
	// Auxiliary parts are optional; a broken one only costs fidelity.
	if rels, err := pkg.optionalTree(relsPart); err == nil {
		c.loadRelationships(rels)
	}
	if styles, err := pkg.optionalTree(stylesPart); err == nil {
		c.loadStyles(styles)
	}
	if numbering, err := pkg.optionalTree(numberingPart); err == nil {
		c.loadNumbering(numbering)
	}

	w := &htmlWriter{}
	c.blocks(w, body.children)
	w.closeLists()
	return w.String(), nil
}

type docxPackage struct {
	files map[string]*zip.File
	// budget is the decompressed byte count still allowed for later reads.
	budget int64
}

func (p *docxPackage) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	limit := min(int64(maxPartBytes), p.budget)
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("part %s: %w", name, errPartTooLarge)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	defer rc.Close()

	// The header size is not trusted; the reader enforces the cap.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("part %s: %w", name, errPartTooLarge)
	}
	p.budget -= int64(len(data))
	return data, nil
}

func (p *docxPackage) tree(name string) (*node, error) {
	data, err := p.read(name)
	if err != nil {
		return nil, err
	}
	root, err := parseTree(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse part %s: %w", name, err)
	}
	return root, nil
}

func (p *docxPackage) optionalTree(name string) (*node, error) {
	if _, ok := p.files[name]; !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	return p.tree(name)
}

type relationship struct {
	target   string
	external bool
}

type converter struct {
	pkg       *docxPackage
	rels      map[string]relationship
	styles    map[string]string
	numbering map[string]map[int]string
}

func (c *converter) loadRelationships(root *node) {
	rels := root.find("Relationships")
	if rels == nil {
		return
	}
	for _, r := range rels.children {
		if r.name != "Relationship" {
			continue
		}
		c.rels[r.attr("Id")] = relationship{
			target:   r.attr("Target"),
			external: strings.EqualFold(r.attr("TargetMode"), "External"),
		}
	}
}

func (c *converter) loadStyles(root *node) {
	styles := root.find("styles")
	if styles == nil {
		return
	}
	for _, s := range styles.children {
		if s.name != "style" {
			continue
		}
		if name := s.child("name"); name != nil {
			c.styles[s.attr("styleId")] = strings.ToLower(name.attr("val"))
		}
	}
}

func (c *converter) loadNumbering(root *node) {
	numbering := root.find("numbering")
	if numbering == nil {
		return
	}

	abstract := map[string]map[int]string{}
	for _, a := range numbering.children {
		if a.name != "abstractNum" {
			continue
		}
		levels := map[int]string{}
		for _, lvl := range a.children {
			if lvl.name != "lvl" {
				continue
			}
			ilvl, err := strconv.Atoi(lvl.attr("ilvl"))
			if err != nil {
				continue
			}
			levels[ilvl] = lvl.child("numFmt").attr("val")
		}
		abstract[a.attr("abstractNumId")] = levels
	}

	for _, n := range numbering.children {
		if n.name != "num" {
			continue
		}
		if ref := n.child("abstractNumId"); ref != nil {
			c.numbering[n.attr("numId")] = abstract[ref.attr("val")]
		}
	}
}

// blocks renders body-level content: paragraphs, tables and content controls.
func (c *converter) blocks(w *htmlWriter, nodes []*node) {
	for _, n := range nodes {
		switch n.name {
		case "p":
			c.paragraph(w, n)
		case "tbl":
			w.closeLists()
			c.table(w, n)
		case "sdt":
			c.blocks(w, n.child("sdtContent").childrenOrNil())
		}
	}
}

func (n *node) childrenOrNil() []*node {
	if n == nil {
		return nil
	}
	return n.children
}

func (c *converter) paragraph(w *htmlWriter, p *node) {
	props := p.child("pPr")
	var inline inlineWriter
	c.inlines(&inline, p.children)
	content := strings.TrimSpace(inline.String())

	if level, ordered, ok := c.listInfo(props); ok {
		if content != "" {
			tag := "ul"
			if ordered {
				tag = "ol"
			}
			w.listItem(level, tag, content)
		}
		if inline.pageBreak {
			w.closeLists()
			w.raw(`<div class="page-break"></div>`)
		}
		return
	}

	w.closeLists()
	if toggled(props.child("pageBreakBefore")) {
		w.raw(`<div class="page-break"></div>`)
	}
	if content != "" {
		tag := c.paragraphTag(props)
		w.raw("<" + tag + ">" + content + "</" + tag + ">")
	}
	if inline.pageBreak {
		w.raw(`<div class="page-break"></div>`)
	}
}

// paragraphTag maps Word heading styles onto h1-h6.
func (c *converter) paragraphTag(props *node) string {
	styleID := props.child("pStyle").attr("val")
	if styleID == "" {
		return "p"
	}

	name := c.styles[styleID]
	if name == "" {
		name = strings.ToLower(styleID)
	}
	name = strings.ReplaceAll(name, " ", "")

	switch name {
	case "title":
		return "h1"
	case "subtitle":
		return "h2"
	}
	if rest, ok := strings.CutPrefix(name, "heading"); ok {
		if level, err := strconv.Atoi(rest); err == nil && level >= 1 && level <= 6 {
			return "h" + rest
		}
	}
	return "p"
}

func (c *converter) listInfo(props *node) (level int, ordered bool, ok bool) {
	numPr := props.child("numPr")
	if numPr == nil {
		return 0, false, false
	}
	numID := numPr.child("numId").attr("val")
	if numID == "" || numID == "0" {
		return 0, false, false
	}

	level, _ = strconv.Atoi(numPr.child("ilvl").attr("val"))
	if level < 0 {
		level = 0
	}
	if level >= maxListDepth {
		level = maxListDepth - 1
	}

	format := c.numbering[numID][level]
	ordered = format != "" && format != "bullet" && format != "none"
	return level, ordered, true
}

func (c *converter) table(w *htmlWriter, tbl *node) {
	var rows strings.Builder
	for _, tr := range tbl.children {
		if tr.name != "tr" {
			continue
		}
		rows.WriteString("<tr>")
		for _, tc := range tr.children {
			if tc.name != "tc" {
				continue
			}
			cell := &htmlWriter{}
			c.blocks(cell, tc.children)
			cell.closeLists()

			attrs := ""
			if span, err := strconv.Atoi(tc.child("tcPr").child("gridSpan").attr("val")); err == nil && span > 1 {
				attrs = fmt.Sprintf(` colspan="%d"`, span)
			}
			rows.WriteString("<td" + attrs + ">" + cell.String() + "</td>")
		}
		rows.WriteString("</tr>")
	}
	if rows.Len() == 0 {
		return
	}
	w.raw("<table><tbody>" + rows.String() + "</tbody></table>")
}

// inlines renders paragraph content: runs, hyperlinks and wrappers that
// carry runs (insertions, smart tags, simple fields, content controls).
func (c *converter) inlines(w *inlineWriter, nodes []*node) {
	for _, n := range nodes {
		switch n.name {
		case "r":
			c.run(w, n)
		case "hyperlink":
			var inner inlineWriter
			c.inlines(&inner, n.children)
			if inner.pageBreak {
				w.pageBreak = true
			}
			href := c.hyperlinkTarget(n)
			if href == "" {
				w.WriteString(inner.String())
				continue
			}
			w.WriteString(`<a href="` + html.EscapeString(href) + `">` + inner.String() + "</a>")
		case "ins", "smartTag", "fldSimple", "customXml":
			c.inlines(w, n.children)
		case "sdt":
			c.inlines(w, n.child("sdtContent").childrenOrNil())
		}
	}
}

func (c *converter) hyperlinkTarget(link *node) string {
	if anchor := link.attr("anchor"); anchor != "" {
		return "#" + anchor
	}
	rel, ok := c.rels[link.attr("id")]
	if !ok || !rel.external {
		return ""
	}
	lower := strings.ToLower(rel.target)
	for _, scheme := range []string{"http://", "https://", "mailto:"} {
		if strings.HasPrefix(lower, scheme) {
			return rel.target
		}
	}
	return ""
}

func (c *converter) run(w *inlineWriter, r *node) {
	var text strings.Builder
	for _, n := range r.children {
		switch n.name {
		case "t":
			text.WriteString(html.EscapeString(n.text))
		case "tab":
			text.WriteString("\t")
		case "br", "cr":
			if n.attr("type") == "page" {
				w.pageBreak = true
				continue
			}
			text.WriteString("<br>")
		case "noBreakHyphen":
			text.WriteString("&#8209;")
		case "drawing", "pict":
			text.WriteString(c.image(n))
		}
	}
	if text.Len() == 0 {
		return
	}
	w.WriteString(wrapFormatting(r.child("rPr"), text.String()))
}

func (c *converter) image(drawing *node) string {
	embed := drawing.find("blip").attr("embed")
	if embed == "" {
		embed = drawing.find("imagedata").attr("id")
	}
	rel, ok := c.rels[embed]
	if !ok || rel.external {
		return ""
	}

	partName := path.Join("word", rel.target)
	if strings.HasPrefix(rel.target, "/") {
		partName = strings.TrimPrefix(rel.target, "/")
	}
	data, err := c.pkg.read(partName)
	if err != nil {
		return ""
	}
	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(partName)))
	if !strings.HasPrefix(contentType, "image/") {
		return ""
	}

	alt := drawing.find("docPr").attr("descr")
	return `<img src="data:` + contentType + ";base64," + base64.StdEncoding.EncodeToString(data) +
		`" alt="` + html.EscapeString(alt) + `">`
}

// wrapFormatting applies run properties innermost-first so the output nests
// consistently.
func wrapFormatting(props *node, content string) string {
	if props == nil {
		return content
	}
	switch props.child("vertAlign").attr("val") {
	case "superscript":
		content = "<sup>" + content + "</sup>"
	case "subscript":
		content = "<sub>" + content + "</sub>"
	}
	if toggled(props.child("strike")) || toggled(props.child("dstrike")) {
		content = "<s>" + content + "</s>"
	}
	if u := props.child("u"); u != nil && u.attr("val") != "none" && toggled(u) {
		content = "<u>" + content + "</u>"
	}
	if toggled(props.child("i")) {
		content = "<em>" + content + "</em>"
	}
	if toggled(props.child("b")) {
		content = "<strong>" + content + "</strong>"
	}
	return content
}

// toggled reports whether an on/off property element is present and on.
func toggled(prop *node) bool {
	if prop == nil {
		return false
	}
	switch strings.ToLower(prop.attr("val")) {
	case "0", "false", "off":
		return false
	}
	return true
}
