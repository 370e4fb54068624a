package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wandsearch/internal/analysis"
	"wandsearch/internal/evalrunner"
	"wandsearch/internal/index"
	"wandsearch/internal/query"
	"wandsearch/internal/wand"
	"wandsearch/internal/wandsegment"
)

func queryCmd() *cobra.Command {
	var (
		indexPath  string
		queryPath  string
		outPath    string
		runID      string
		variant    string
		k          int
		secondaryK int
		threads    int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Evaluate a batch of queries against the most recently committed segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), queryConfig{
				indexPath:  indexPath,
				queryPath:  queryPath,
				outPath:    outPath,
				runID:      runID,
				variant:    wand.Variant(variant),
				k:          k,
				secondaryK: secondaryK,
				threads:    threads,
			})
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "", "index directory to read from (required)")
	cmd.Flags().StringVar(&queryPath, "queries", "", "path to a JSON-lines query file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "TREC run output path (default stdout)")
	cmd.Flags().StringVar(&runID, "run-id", "evaluate", "run tag for the TREC output's last field")
	cmd.Flags().StringVar(&variant, "variant", string(wand.WandBaseline), "evaluation variant: wand, wand_m1, wand_m2, wand_m3, bmw, bmw_m1, bmw_m2, bmw_m3")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "primary top-k depth")
	cmd.Flags().IntVar(&secondaryK, "secondary-k", 0, "secondary (ejection-capture) depth, for m1/m2/m3 variants")
	cmd.Flags().IntVar(&threads, "threads", 4, "maximum concurrent query workers")
	cmd.MarkFlagRequired("index")
	cmd.MarkFlagRequired("queries")

	return cmd
}

type queryConfig struct {
	indexPath  string
	queryPath  string
	outPath    string
	runID      string
	variant    wand.Variant
	k          int
	secondaryK int
	threads    int
}

// rawQuery is the JSON-lines input shape: free text against one field.
// Each whitespace-separated word is either tokenized with the field's
// schema analyzer, or, if it contains '*'/'?', expanded as a prefix or
// wildcard pattern against the segment's actual term vocabulary. The
// resulting term clauses are assembled into a query.Query and flattened
// to the disjunctive term list the evaluation core requires.
type rawQuery struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Text  string `json:"text"`
}

func runQuery(ctx context.Context, cfg queryConfig) error {
	dir := index.NewIndexDir(cfg.indexPath)

	gen, err := index.ReadCurrentGeneration(dir)
	if err != nil {
		return fmt.Errorf("read current generation: %w", err)
	}
	if gen == 0 {
		return fmt.Errorf("index at %q has no committed generation", cfg.indexPath)
	}
	manifest, err := index.LoadManifest(dir, gen)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	if len(manifest.Segments) == 0 {
		return fmt.Errorf("manifest generation %d has no segments", gen)
	}
	segMeta := manifest.Segments[len(manifest.Segments)-1]

	files := make(map[string][]byte, 3)
	for _, name := range []string{"postings.bin", "wandmeta.bin", "deletions.bin"} {
		data, err := os.ReadFile(dir.SegmentFile(segMeta.ID, name))
		if err != nil {
			return fmt.Errorf("read segment file %s: %w", name, err)
		}
		files[name] = data
	}
	seg, err := wandsegment.Open(files)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", segMeta.ID, err)
	}

	schema, err := index.LoadSchema(dir)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	registry := analysis.NewRegistry()

	queries, err := loadQueries(cfg.queryPath, schema, registry, seg)
	if err != nil {
		return fmt.Errorf("load queries: %w", err)
	}

	opts := evalrunner.Options{
		Variant:    cfg.variant,
		K:          cfg.k,
		SecondaryK: cfg.secondaryK,
		MaxDocID:   segMeta.MaxDocID + 1,
		Threads:    cfg.threads,
	}

	results, err := evalrunner.Run(ctx, seg, queries, opts)
	if err != nil {
		return fmt.Errorf("run queries: %w", err)
	}

	out := os.Stdout
	if cfg.outPath != "" {
		f, err := os.Create(cfg.outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return evalrunner.WriteTRECRun(out, cfg.runID, results)
}

func loadQueries(path string, schema *index.Schema, registry *analysis.Registry, seg *wandsegment.Segment) ([]evalrunner.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []evalrunner.Query
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawQuery
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		built, err := buildQuery(raw, schema, registry, seg)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", raw.ID, err)
		}

		terms, err := query.FlattenDisjunctive(built)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", raw.ID, err)
		}

		evalTerms := make([]evalrunner.Term, len(terms))
		for i, t := range terms {
			evalTerms[i] = evalrunner.Term{Field: t.Field, Text: t.Term, Weight: 1.0}
		}
		queries = append(queries, evalrunner.Query{ID: raw.ID, Terms: evalTerms})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return queries, nil
}

// buildQuery turns a raw query line into a flat query.BooleanQuery of
// BooleanShould term clauses: analyzed tokens for literal words, and
// query.ExpandPattern matches (against the segment's own vocabulary) for
// words containing '*' or '?'.
func buildQuery(raw rawQuery, schema *index.Schema, registry *analysis.Registry, seg *wandsegment.Segment) (query.Query, error) {
	analyzerName := fieldAnalyzer(schema, raw.Field)
	analyzer, err := registry.Get(analyzerName)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var clauses []query.BooleanClause
	for _, word := range strings.Fields(raw.Text) {
		if query.IsPattern(word) {
			vocab := seg.TermsForField(raw.Field)
			matches, err := query.ExpandPattern(raw.Field, word, vocab)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if seen[m.Term] {
					continue
				}
				seen[m.Term] = true
				tq := m
				clauses = append(clauses, query.BooleanClause{Occur: query.BooleanShould, Query: &tq})
			}
			continue
		}

		for _, tok := range analyzer.Analyze(raw.Field, word) {
			if seen[tok.Term] {
				continue
			}
			seen[tok.Term] = true
			tq := query.TermQuery{Field: raw.Field, Term: tok.Term}
			clauses = append(clauses, query.BooleanClause{Occur: query.BooleanShould, Query: &tq})
		}
	}

	switch len(clauses) {
	case 0:
		return &query.MatchNoneQuery{}, nil
	case 1:
		return clauses[0].Query, nil
	default:
		return &query.BooleanQuery{Clauses: clauses}, nil
	}
}

func fieldAnalyzer(schema *index.Schema, field string) string {
	for _, f := range schema.Fields {
		if f.Name == field && f.Analyzer != "" {
			return f.Analyzer
		}
	}
	if schema.DefaultAnalyzer != "" {
		return schema.DefaultAnalyzer
	}
	return index.AnalyzerStandard
}
