// Package pdf renders Markdown documents to PDF files.
package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

const (
	font       = "Helvetica"
	mono       = "Courier"
	bodySize   = 10.0
	lineHeight = 5.0
	margin     = 15.0
)

// Renderer turns Markdown into PDF using the core fonts.
type Renderer struct {
	logger *zap.Logger
	md     goldmark.Markdown
}

// NewRenderer creates a renderer.
func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		logger: logger,
		md:     goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// RenderPDF writes markdown as a PDF to outputPath. Title and description,
// when set, open the document and fill its metadata.
func (r *Renderer) RenderPDF(markdown, outputPath, title, description string) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)
	doc.SetCreator("kmd", true)
	if title != "" {
		doc.SetTitle(title, true)
	}
	if description != "" {
		doc.SetSubject(description, true)
	}
	doc.AddPage()

	w := &writer{
		pdf:    doc,
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
		source: []byte(markdown),
		size:   bodySize,
	}

	if title != "" {
		doc.SetFont(font, "B", 18)
		doc.MultiCell(0, 8, w.tr(title), "", "L", false)
		doc.Ln(2)
	}
	if description != "" {
		doc.SetFont(font, "I", bodySize)
		doc.MultiCell(0, lineHeight, w.tr(description), "", "L", false)
		doc.Ln(4)
	}
	w.setFont()

	root := r.md.Parser().Parse(text.NewReader(w.source))
	if err := ast.Walk(root, w.walk); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := doc.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	err := atomicfile.WriteFunc(outputPath, 0o644, func(out io.Writer) error {
		return doc.Output(out)
	})
	if err != nil {
		return fmt.Errorf("write pdf %s: %w", outputPath, err)
	}
	r.logger.Debug("rendered pdf", zap.String("path", outputPath), zap.Int("pages", doc.PageCount()))
	return nil
}

type writer struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	source []byte

	size      float64
	bold      bool
	italic    bool
	listLevel int
	quote     int
}

func (w *writer) setFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(font, style, w.size)
}

func (w *writer) write(s string) {
	w.pdf.Write(lineHeight, w.tr(s))
}

func (w *writer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(3)
			w.size = headingSize(n.Level)
			w.bold = true
		} else {
			w.size, w.bold = bodySize, false
			w.pdf.Ln(lineHeight + 2)
		}
		w.setFont()
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(lineHeight + 1)
		}
	case *ast.Blockquote:
		if entering {
			w.quote++
			w.italic = true
		} else {
			w.quote--
			w.italic = w.quote > 0
		}
		w.setFont()
	case *ast.Text:
		if entering {
			w.write(string(n.Segment.Value(w.source)))
			switch {
			case n.HardLineBreak():
				w.pdf.Ln(lineHeight)
			case n.SoftLineBreak():
				w.write(" ")
			}
		}
	case *ast.String:
		if entering {
			w.write(string(n.Value))
		}
	case *ast.Emphasis:
		if n.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.setFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont(mono, "", w.size)
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					w.write(string(t.Segment.Value(w.source)))
				}
			}
			w.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listLevel++
		} else {
			w.listLevel--
			if w.listLevel == 0 {
				w.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			w.pdf.SetX(margin + float64(w.listLevel-1)*5)
			bullet := "- "
			if list, ok := n.Parent().(*ast.List); ok && list.IsOrdered() {
				bullet = fmt.Sprintf("%d. ", list.Start+indexOf(n))
			}
			w.write(bullet)
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			pageW, _ := w.pdf.GetPageSize()
			w.pdf.Line(margin, w.pdf.GetY(), pageW-margin, w.pdf.GetY())
			w.pdf.Ln(3)
		}
	case *ast.Image:
		if entering {
			w.write("[image: " + string(n.Destination) + "]")
		}
		return ast.WalkSkipChildren, nil
	case *ast.RawHTML, *ast.HTMLBlock:
		return ast.WalkSkipChildren, nil
	case *extast.Table:
		if entering {
			w.table(n)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 14
	case 3:
		return 12
	default:
		return 11
	}
}

func indexOf(item ast.Node) int {
	i := 0
	for c := item.PreviousSibling(); c != nil; c = c.PreviousSibling() {
		i++
	}
	return i
}

func (w *writer) codeBlock(lines *text.Segments) {
	w.pdf.Ln(1)
	w.pdf.SetFont(mono, "", bodySize-1)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(w.source)), "\n")
		w.pdf.MultiCell(0, lineHeight, w.tr(line), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.setFont()
	w.pdf.Ln(2)
}

func (w *writer) table(t *extast.Table) {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, w.plain(cell))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	pageW, _ := w.pdf.GetPageSize()
	colW := (pageW - 2*margin) / float64(len(rows[0]))
	w.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		w.pdf.SetFont(font, style, bodySize-1)
		for _, cell := range row {
			w.pdf.CellFormat(colW, lineHeight+1, w.tr(cell), "1", 0, "L", false, 0, "")
		}
		w.pdf.Ln(-1)
	}
	w.setFont()
	w.pdf.Ln(2)
}

// plain flattens the inline text under n.
func (w *writer) plain(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(w.source))
		case *ast.String:
			b.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
