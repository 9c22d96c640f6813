package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridrag/internal/indexer"
	"github.com/dshills/hybridrag/internal/parser"
)

type ingestOptions struct {
	owner     string
	visibleTo []string
	id        string
	text      string
	tabular   bool
	json      bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest documents for an owner role",
		Long: `Extracts text from each file (.pdf, .csv, .tsv or plain text), chunks it,
embeds the chunks and stores them for the owner role and any --visible-to roles.
The document id defaults to the file name without its extension. Unchanged
documents are skipped.

Use --text instead of files to ingest literal text under --id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.owner, "owner", "o", "", "owner role (required)")
	cmd.Flags().StringSliceVar(&opts.visibleTo, "visible-to", nil, "additional roles allowed to read the documents")
	cmd.Flags().StringVar(&opts.id, "id", "", "document id (single file or --text only)")
	cmd.Flags().StringVar(&opts.text, "text", "", "ingest literal text instead of files")
	cmd.Flags().BoolVar(&opts.tabular, "tabular", false, "treat --text as tabular rows")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, opts *ingestOptions, files []string) error {
	if opts.text == "" && len(files) == 0 {
		return errors.New("provide files to ingest or --text")
	}
	if opts.text != "" && len(files) > 0 {
		return errors.New("--text cannot be combined with files")
	}
	if opts.id != "" && len(files) > 1 {
		return errors.New("--id can only be used with a single document")
	}

	requests := make([]indexer.IngestRequest, 0, max(len(files), 1))
	if opts.text != "" {
		requests = append(requests, indexer.IngestRequest{
			DocumentID: opts.id,
			OwnerRole:  opts.owner,
			VisibleTo:  opts.visibleTo,
			Text:       opts.text,
			Tabular:    opts.tabular,
		})
	}

	p := parser.New()
	for _, path := range files {
		parsed, err := p.ParseFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		id := opts.id
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		requests = append(requests, indexer.IngestRequest{
			DocumentID: id,
			Filename:   filepath.Base(path),
			OwnerRole:  opts.owner,
			VisibleTo:  opts.visibleTo,
			Text:       parsed.Text,
			Tabular:    parsed.Tabular,
		})
	}

	a, err := root.openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	results := make([]*indexer.IngestResult, 0, len(requests))
	for _, req := range requests {
		result, err := a.indexer.Ingest(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", describe(req), err)
		}
		results = append(results, result)
	}

	out := cmd.OutOrStdout()
	if opts.json {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	for _, r := range results {
		if r.Skipped {
			fmt.Fprintf(out, "%s: unchanged (%d chunks)\n", r.DocumentID, r.ChunkCount)
			continue
		}
		fmt.Fprintf(out, "%s: %s, %d chunks in %s\n", r.DocumentID, r.Status, r.ChunkCount, r.Duration.Round(time.Millisecond))
	}
	return nil
}

func describe(req indexer.IngestRequest) string {
	if req.Filename != "" {
		return req.Filename
	}
	if req.DocumentID != "" {
		return req.DocumentID
	}
	return "text"
}
