package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/141286/SWG-introduction-to-R/internal/app"
	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/exporter"
	"github.com/141286/SWG-introduction-to-R/internal/files"
	"github.com/141286/SWG-introduction-to-R/internal/scraper"
	"github.com/141286/SWG-introduction-to-R/internal/services"
	"github.com/141286/SWG-introduction-to-R/internal/validation"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

func addCommands(root *cobra.Command, c *cli) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline definition",
		Args:  cobra.NoArgs,
		RunE:  c.runPipeline}
	cmd.Flags().StringP("pipeline", "p", "", "pipeline definition file, or a directory of them (required)")
	cmd.Flags().String("filter", "", "override the pipeline filter, as column=value")
	cmd.Flags().String("out", "", "override the output directory")
	cmd.Flags().StringSlice("format", nil, "override the output formats (csv, xlsx, json, parquet)")
	cmd.Flags().Bool("json", false, "print the run result as JSON")
	_ = cmd.MarkFlagRequired("pipeline")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "list [dir]",
		Short: "List the pipeline definitions in a directory (default: pipelines)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.list}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "inspect",
		Short: "Print the inferred schema of a CSV or XLSX file",
		Args:  cobra.NoArgs,
		RunE:  c.inspect}
	cmd.Flags().StringP("input", "i", "", "input file, or a directory to inspect its newest input (required)")
	cmd.Flags().String("sheet", "", "XLSX sheet (default: first sheet)")
	cmd.Flags().StringSlice("missing", nil, "extra tokens read as missing values")
	cmd.Flags().Bool("json", false, "print the schema as JSON")
	_ = cmd.MarkFlagRequired("input")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "scrape",
		Short: "Extract an HTML table from a web page into CSV",
		Args:  cobra.NoArgs,
		RunE:  c.scrape}
	cmd.Flags().String("url", "", "page URL (required)")
	cmd.Flags().String("selector", "table", "CSS selector matching candidate tables")
	cmd.Flags().Int("index", 0, "zero-based index among the matched tables")
	cmd.Flags().StringP("output", "o", "", "CSV file to write (required)")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("output")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE:  c.serve}
	cmd.Flags().Int("port", 0, "override the configured port")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs no configuration.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.stdout, contracts.GetVersionString())
		}}
	root.AddCommand(cmd)
}

func (c *cli) pipelineService() *services.PipelineService {
	return services.NewPipelineService(c.logger,
		services.WithScraper(scraper.New(scraper.ConfigFrom(c.cfg.Scraper), c.logger)),
		services.WithTelemetry(c.providers.Tracer, c.metrics))
}

func (c *cli) runPipeline(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("pipeline")

	paths := []string{path}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		found, err := files.NewDiscovery(".").FindPipelines(path)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.NewNotFoundError(fmt.Sprintf("pipeline definitions in %s", path))
		}
		paths = paths[:0]
		for _, f := range found {
			paths = append(paths, f.Path)
		}
	}

	for i, p := range paths {
		if i > 0 {
			fmt.Fprintln(c.stdout)
		}
		if err := c.runOne(cmd, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) runOne(cmd *cobra.Command, path string) error {
	def, err := config.LoadPipeline(path)
	if err != nil {
		return err
	}

	if filter, _ := cmd.Flags().GetString("filter"); filter != "" {
		spec, err := config.ParseFilter(filter)
		if err != nil {
			return err
		}
		def.Filter = spec
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		abs, err := filepath.Abs(out)
		if err != nil {
			return err
		}
		def.Output.Dir = abs
	}
	if formats, _ := cmd.Flags().GetStringSlice("format"); len(formats) > 0 {
		def.Output.Formats = formats
		if err := def.Validate(); err != nil {
			return err
		}
	}

	result, err := c.pipelineService().Run(cmd.Context(), def)
	if result != nil {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if jerr := writeJSON(c.stdout, result); jerr != nil {
				return jerr
			}
		} else {
			printRunResult(c.stdout, def, result)
		}
	}
	return err
}

func (c *cli) list(cmd *cobra.Command, args []string) error {
	dir := "pipelines"
	if len(args) == 1 {
		dir = args[0]
	}

	found, err := files.NewDiscovery(".").FindPipelines(dir)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILE\tINPUT\tRULES\tOUTPUTS")
	for _, f := range found {
		def, err := config.LoadPipeline(f.Path)
		if err != nil {
			fmt.Fprintf(tw, "-\t%s\tinvalid: %s\t\t\n", f.Name, err)
			continue
		}
		input := def.Input.Path
		if def.Input.URL != "" {
			input = def.Input.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", def.Name, f.Name, input, len(def.Rules),
			strings.Join(def.Output.Formats, ","))
	}
	return tw.Flush()
}

func printRunResult(w io.Writer, def *config.PipelineDefinition, result *services.RunResult) {
	fmt.Fprintf(w, "%s run %s %s in %s\n", result.Pipeline, result.RunID, result.Status,
		result.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tDURATION\tDETAIL")
	for _, step := range result.Steps {
		detail := step.Message
		if step.Error != "" {
			detail = step.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", step.ID, step.Status, step.Duration.Round(time.Microsecond), detail)
	}
	tw.Flush()

	if def.Aggregate != nil && len(result.Summaries) > 0 {
		fmt.Fprintln(w)
		printTable(w, dataprocessing.SummaryTable(*def.Aggregate, result.Summaries))
	}
	for _, out := range result.Outputs {
		fmt.Fprintf(w, "wrote %s\n", out)
	}
}

func printTable(w io.Writer, table domain.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Columns, "\t"))
	for _, row := range table.Matrix() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) inspect(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("input")
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		inputs, err := files.NewDiscovery(".").FindInputs(path)
		if err != nil {
			return err
		}
		latest, ok := files.GetLatestFile(inputs)
		if !ok {
			return errors.NewNotFoundError(fmt.Sprintf("inputs in %s", path))
		}
		path = latest.Path
	}
	sheet, _ := cmd.Flags().GetString("sheet")
	missing, _ := cmd.Flags().GetStringSlice("missing")

	table, schema, err := c.pipelineService().Inspect(cmd.Context(), path,
		dataprocessing.ReadOptions{Sheet: sheet, MissingTokens: missing})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(c.stdout, schema)
	}

	fmt.Fprintf(c.stdout, "%s: %d rows, %d columns\n", path, table.Len(), len(schema.Columns))
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tKIND\tMISSING")
	for _, col := range schema.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", col.Name, col.Kind, col.Missing)
	}
	return tw.Flush()
}

func (c *cli) scrape(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	selector, _ := cmd.Flags().GetString("selector")
	index, _ := cmd.Flags().GetInt("index")
	output, _ := cmd.Flags().GetString("output")

	if err := validation.NewFileValidator(c.logger).ValidateOutputDirectory(filepath.Dir(output)); err != nil {
		return err
	}

	s := scraper.New(scraper.ConfigFrom(c.cfg.Scraper), c.logger)
	table, err := s.Scrape(cmd.Context(), scraper.Request{URL: url, Selector: selector, Index: index})
	if err != nil {
		return err
	}

	if err := exporter.NewCSVWriter(c.logger).WriteTable(output, table, exporter.FormatterTable{}, false); err != nil {
		return err
	}
	c.logger.InfoContext(cmd.Context(), "table scraped",
		slog.String("url", url),
		slog.String("output", output),
		slog.Int("rows", table.Len()))
	fmt.Fprintf(c.stdout, "wrote %d rows to %s\n", table.Len(), output)
	return nil
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		c.cfg.Server.Port = port
	}

	application, err := app.NewApplication(c.cfg, c.logger, c.providers)
	if err != nil {
		return err
	}
	// The application flushes telemetry on shutdown.
	c.providers = nil
	return application.Run(cmd.Context())
}
