package parser

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyContent    = errors.New("no content could be extracted")
)

var mediaExts = []string{"mp3", "wav", "m4a", "mp4", "avi", "mov"}

// IsMedia reports whether ext is audio or video that is passed to models
// as-is rather than decoded to text.
func IsMedia(ext string) bool {
	return slices.Contains(mediaExts, strings.ToLower(strings.TrimPrefix(ext, ".")))
}

// Part is a labelled slice of a document. Labels are used as provenance
// in extracted requirements ("p.12", "Sheet1", "## Scope").
type Part struct {
	Label string
	Text  string
}

// Document is decoded text split into parts.
type Document struct {
	Title string
	Parts []Part
}

// Text joins all parts, each under its label.
func (d *Document) Text() string {
	var sb strings.Builder
	for i, p := range d.Parts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if p.Label != "" {
			fmt.Fprintf(&sb, "[%s]\n", p.Label)
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Len is the total text length across parts.
func (d *Document) Len() int {
	n := 0
	for _, p := range d.Parts {
		n += len(p.Text)
	}
	return n
}

// Decode extracts text from data according to ext.
func Decode(data []byte, ext string) (*Document, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	var (
		doc *Document
		err error
	)
	switch ext {
	case "txt", "json":
		doc, err = decodePlain(data)
	case "md":
		doc, err = decodeMarkdown(data)
	case "csv":
		doc, err = decodeCSV(data)
	case "pdf":
		doc, err = decodePDF(data)
	case "docx":
		doc, err = decodeDOCX(data)
	case "xlsx":
		doc, err = decodeXLSX(data)
	default:
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}
	if err != nil {
		return nil, err
	}

	doc.Parts = slices.DeleteFunc(doc.Parts, func(p Part) bool {
		return strings.TrimSpace(p.Text) == ""
	})
	if len(doc.Parts) == 0 {
		return nil, ErrEmptyContent
	}
	return doc, nil
}

func decodePlain(data []byte) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("decode text: invalid utf-8")
	}
	return &Document{Parts: SplitParts(string(data), DefaultPartConfig())}, nil
}

func decodeMarkdown(data []byte) (*Document, error) {
	md, err := ParseMarkdown(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse markdown: %w", err)
	}
	doc := &Document{Title: md.Title}
	if len(md.Sections) == 0 {
		doc.Parts = SplitParts(md.Content, DefaultPartConfig())
		return doc, nil
	}
	for _, s := range md.Sections {
		doc.Parts = append(doc.Parts, Part{Label: s.Path, Text: s.Content})
	}
	return doc, nil
}

func decodeCSV(data []byte) (*Document, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return &Document{Parts: []Part{{Text: renderTable(rows)}}}, nil
}

func decodePDF(data []byte) (*Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	doc := &Document{}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		doc.Parts = append(doc.Parts, Part{Label: fmt.Sprintf("p.%d", i), Text: strings.TrimSpace(text)})
	}
	return doc, nil
}

func decodeXLSX(data []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	doc := &Document{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		doc.Parts = append(doc.Parts, Part{Label: sheet, Text: renderTable(rows)})
	}
	return doc, nil
}

// decodeDOCX reads paragraph text from word/document.xml.
func decodeDOCX(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("open docx body: %w", err)
			}
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("open docx: word/document.xml not found")
	}
	defer body.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(body)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return &Document{Parts: SplitParts(sb.String(), DefaultPartConfig())}, nil
}

// renderTable lays rows out pipe-separated, skipping blank rows.
func renderTable(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}
