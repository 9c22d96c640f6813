package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/dshills/hybridrag/internal/chunker"
)

// Formats recognised by the parser
const (
	FormatText = "text"
	FormatPDF  = "pdf"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
)

var (
	// ErrNoText is returned when a file yields no extractable text
	ErrNoText = errors.New("no extractable text")
	// ErrBinary is returned for non-UTF-8 content in a text format
	ErrBinary = errors.New("content is not valid UTF-8 text")
)

// Result is the ingestible text of one file
type Result struct {
	Text    string
	Tabular bool
	Format  string
}

// Parser extracts text from documents
type Parser struct {
	// RowSeparator joins the cells of a tabular row
	RowSeparator string
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{RowSeparator: " | "}
}

// DetectFormat chooses a format from the file extension
func DetectFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".csv":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	default:
		return FormatText
	}
}

// ParseFile reads and extracts the file at path
func (p *Parser) ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(filepath.Base(path), data)
}

// Parse extracts text from data, using filename to pick the format.
// Tabular formats are rendered as one sheet per file, headed by the sheet
// marker the chunker recognises. Plain text that already carries sheet
// markers is treated as tabular.
func (p *Parser) Parse(filename string, data []byte) (*Result, error) {
	format := DetectFormat(filename)

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatCSV:
		text, err = p.extractDelimited(filename, data, ',')
	case FormatTSV:
		text, err = p.extractDelimited(filename, data, '\t')
	default:
		if !utf8.Valid(data) {
			return nil, ErrBinary
		}
		text = string(data)
	}
	if err != nil {
		return nil, err
	}

	text = sanitize(text)
	if text == "" {
		return nil, ErrNoText
	}

	tabular := format == FormatCSV || format == FormatTSV ||
		strings.HasPrefix(text, chunker.SheetMarker)
	return &Result{Text: text, Tabular: tabular, Format: format}, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

func (p *Parser) extractDelimited(filename string, data []byte, comma rune) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrBinary
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	sheet := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", chunker.SheetMarker, sheet)
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", filename, err)
		}
		for i := range record {
			record[i] = strings.Join(strings.Fields(record[i]), " ")
		}
		line := strings.Join(record, p.RowSeparator)
		if strings.TrimSpace(strings.ReplaceAll(line, strings.TrimSpace(p.RowSeparator), "")) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
		rows++
	}
	if rows == 0 {
		return "", nil
	}
	return b.String(), nil
}

// sanitize normalizes line endings, drops NUL bytes and trims the text
func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}
