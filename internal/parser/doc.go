// Package parser extracts ingestible text from document files.
//
// Supported formats are chosen by extension:
//   - .pdf: plain text of every page
//   - .csv, .tsv: one sheet, a header row followed by data rows
//   - anything else: UTF-8 text
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.ParseFile("/path/to/q3-report.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chunks, err := chunker.New(chunker.Config{}).Split(result.Text, result.Tabular)
//
// Tabular output starts each sheet with the chunker's "Sheet:" marker line so
// that chunks repeat the header row.
package parser
