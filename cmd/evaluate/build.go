package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wandsearch/internal/analysis"
	"wandsearch/internal/commit"
	"wandsearch/internal/index"
	"wandsearch/internal/indexing"
	"wandsearch/internal/scoring"
	"wandsearch/internal/wandsegment"
)

func buildCmd() *cobra.Command {
	var (
		indexPath  string
		docsPath   string
		field      string
		analyzer   string
		scorerName string
		blockSize  int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Ingest a document collection and commit a new segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), buildConfig{
				indexPath:  indexPath,
				docsPath:   docsPath,
				field:      field,
				analyzer:   analyzer,
				scorerName: scorerName,
				blockSize:  blockSize,
			})
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "", "index directory to write to (required)")
	cmd.Flags().StringVar(&docsPath, "documents", "", "path to a JSON-lines document file (required)")
	cmd.Flags().StringVar(&field, "field", "body", "text field name to index")
	cmd.Flags().StringVar(&analyzer, "analyzer", index.AnalyzerStandard, "analyzer for the text field")
	cmd.Flags().StringVar(&scorerName, "scorer", "bm25", "scoring function: bm25 or tfidf")
	cmd.Flags().IntVar(&blockSize, "block-size", wandsegment.DefaultBlockSize, "postings per block-max block")
	cmd.MarkFlagRequired("index")
	cmd.MarkFlagRequired("documents")

	return cmd
}

type buildConfig struct {
	indexPath  string
	docsPath   string
	field      string
	analyzer   string
	scorerName string
	blockSize  int
}

// rawDocument is the JSON-lines input shape: {"id": "...", "fields": {...}}.
type rawDocument struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

func runBuild(ctx context.Context, cfg buildConfig) error {
	schema := &index.Schema{
		Version: 1,
		Fields: []index.FieldDef{
			{Name: cfg.field, Type: index.FieldTypeText, Analyzer: cfg.analyzer, Indexed: true},
		},
		DefaultAnalyzer: cfg.analyzer,
	}
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	registry := analysis.NewRegistry()
	writer := indexing.NewWriter(schema, registry)

	n, err := loadDocuments(cfg.docsPath, cfg.field, writer)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	fmt.Printf("indexed %d documents\n", n)

	buf := writer.Buffer()
	scorer, err := newScorer(cfg.scorerName, buf)
	if err != nil {
		return err
	}

	builder := wandsegment.NewBuilder()
	builder.BlockSize = cfg.blockSize

	data, err := builder.Build(buf, scorer)
	if err != nil {
		return fmt.Errorf("build segment: %w", err)
	}

	dir := index.NewIndexDir(cfg.indexPath)
	if err := dir.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure index directories: %w", err)
	}
	if err := index.WriteSchema(dir, schema); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}

	gen, err := index.ReadCurrentGeneration(dir)
	if err != nil {
		return fmt.Errorf("read current generation: %w", err)
	}
	var manifest *index.Manifest
	if gen > 0 {
		manifest, err = index.LoadManifest(dir, gen)
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}
	}

	committer := commit.NewCommitter(dir, commit.DefaultOptions())
	result, err := committer.Commit(ctx, manifest, data)
	if err != nil {
		return fmt.Errorf("commit segment: %w", err)
	}

	fmt.Printf("committed segment %s at generation %d (%v)\n", result.SegmentID, result.Generation, result.Duration)
	return nil
}

func loadDocuments(path, field string, writer *indexing.Writer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawDocument
		if err := json.Unmarshal(line, &raw); err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		fields := make(map[string]interface{}, len(raw.Fields)+1)
		for k, v := range raw.Fields {
			fields[k] = v
		}
		fields["id"] = raw.ID
		if err := writer.AddDocument(indexing.Document{Fields: fields}); err != nil {
			return n, fmt.Errorf("document %q: %w", raw.ID, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}
	return n, nil
}

// newScorer constructs the requested Scorer from the write buffer's
// document statistics: document count and, for BM25, average document
// length across every indexed field.
func newScorer(name string, buf *indexing.WriteBuffer) (wandsegment.Scorer, error) {
	switch name {
	case "bm25":
		avgdl := averageDocLength(buf)
		return scoring.NewBM25Scorer(int64(buf.DocCount), avgdl), nil
	case "tfidf":
		return scoring.NewTFIDFScorer(int64(buf.DocCount)), nil
	default:
		return nil, fmt.Errorf("unknown scorer %q (want bm25 or tfidf)", name)
	}
}

func averageDocLength(buf *indexing.WriteBuffer) float32 {
	if buf.DocCount == 0 {
		return 0
	}
	lens := make(map[uint32]uint32, buf.DocCount)
	for _, fieldMap := range buf.InvertedIndex {
		for _, pl := range fieldMap {
			for _, e := range pl.Entries {
				lens[e.DocID] += e.Freq
			}
		}
	}
	var total uint64
	for _, l := range lens {
		total += uint64(l)
	}
	return float32(total) / float32(buf.DocCount)
}
