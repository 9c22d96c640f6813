// Package chunker divides extracted document text into bounded chunks for
// embedding and search.
//
// # Basic Usage
//
//	c := chunker.New(chunker.Config{MaxSize: 1000})
//	chunks, err := c.Split(text, false)
//	if err != nil {
//	    log.Fatal(err) // empty input
//	}
//
// # Prose Mode
//
// Text is split into sentence-like units ending in '.', '!', '?' or a
// newline. Units accumulate into a buffer until the next one would exceed
// MaxSize; the buffer is then emitted and the next one is seeded with the
// last OverlapWords words of the emitted chunk, so neighbouring chunks share
// context.
//
// A unit longer than MaxSize on its own is hard-split at the last space or
// newline that is at least MinSplitOffset characters in.
//
// # Tabular Mode
//
// Spreadsheet-like text is divided into sheets by lines starting with
// "Sheet:". The first line of each sheet is its header; every chunk emitted
// for the sheet begins with that header followed by as many rows as fit.
//
//	Sheet: Payroll
//	employee,payday,amount
//	alice,2023-07-15,4200
//
// Lengths are measured in characters (runes), never bytes.
package chunker
