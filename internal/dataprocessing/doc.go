// Package dataprocessing holds the table transforms of the pipeline.
//
// # Components
//
//  1. Readers: CSV and XLSX input typed into a domain.Table (numbers, text, missing)
//  2. Enricher: row-wise derivation rules (ratio, membership, recode, compare)
//  3. Layout: column move, projection, the dataset equality filter and the
//     non-finite filter
//  4. Summarizer: grouped descriptive statistics with a value range and the
//     serialized measure values per group
//
// # Usage
//
//	table, err := dataprocessing.ReadCSVFile("wine.csv", dataprocessing.ReadOptions{})
//	rules, err := dataprocessing.CompileRules(specs)
//	enriched, err := dataprocessing.NewEnricher(logger).Apply(ctx, table, rules)
//	finite, err := dataprocessing.DropNonFinite(enriched, "price_per_litre")
//	summaries, err := dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{}).
//	    Summarize(ctx, finite, dataprocessing.AggregateSpec{
//	        GroupBy: []string{"eu"},
//	        Measure: "price_per_litre",
//	        OrderBy: "year",
//	        Stats:   domain.AllStats,
//	    })
//
// # Data Flow
//
//	File → Reader → Table → Enricher → Table → Summarizer → []SummaryRecord
//
// Every transform returns a new table and leaves its input untouched.
//
// # Error Handling
//
// A column that is not in the table fails with errors.ErrMissingColumn and a
// text value where a number is required fails with errors.ErrTypeMismatch.
// Both name the column; enricher failures also carry the rule index. A group
// without any measure values is not an error: its statistics are missing.
package dataprocessing
