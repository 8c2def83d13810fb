// Command ingest loads one or more measurement spreadsheets into the
// configured master store and prints the per-file summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/couchcryptid/rni-data-etl/internal/app"
	"github.com/couchcryptid/rni-data-etl/internal/config"
	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/couchcryptid/rni-data-etl/internal/observability"
	"github.com/couchcryptid/rni-data-etl/internal/pipeline"
	"github.com/couchcryptid/rni-data-etl/internal/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	var meta domain.Metadata
	fs.StringVar(&meta.CCTE, "ccte", "", "CCTE responsible for the measurements")
	fs.StringVar(&meta.Province, "province", "", "province")
	fs.StringVar(&meta.Locality, "locality", "", "locality (required)")
	fs.StringVar(&meta.CaseNumber, "case", "", "case number; defaults to each file name")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: ingest -locality NAME [flags] file.xlsx...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if meta.Locality == "" {
		return errors.New("-locality is required")
	}
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	uploads := make([]pipeline.Upload, fs.NArg())
	for i, path := range fs.Args() {
		uploads[i] = pipeline.FileUpload(path)
	}

	res, err := a.Pipeline.Ingest(ctx, uploads, meta)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		return err
	}
	printResult(out, res)
	return err
}

func printResult(out io.Writer, res pipeline.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARCHIVO\tEXPEDIENTE\tMEDICIONES\tRESULTADO MAX (V/m)")
	for _, s := range res.Summaries {
		maxResult := "-"
		if s.MaxResult != nil {
			maxResult = fmt.Sprintf("%.2f", *s.MaxResult)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Filename, s.CaseNumber, s.TotalMeasurements, maxResult)
	}
	tw.Flush() //nolint:errcheck // terminal output

	for _, w := range res.Warnings {
		fmt.Fprintf(out, "skipped %s: %s\n", w.File, w.Reason)
	}
	fmt.Fprintf(out, "%d records added\n", res.RecordsAdded)
}
