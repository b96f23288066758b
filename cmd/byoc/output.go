package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/byoc/internal/domain"
)

// writeStructured writes v as JSON or YAML. It reports false for any other
// format so the caller can fall back to a table.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format: %s", format)
	}
}

func writeReport(w io.Writer, format string, report domain.IngestionReport) error {
	if done, err := writeStructured(w, format, report); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tTILES")
	for _, key := range []string{domain.CountIngested, domain.CountFailed, domain.CountPending, domain.CountTotal} {
		fmt.Fprintf(tw, "%s\t%d\n", key, report.Counts[key])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.FailureReasons) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failure reasons:")
		for _, reason := range report.FailureReasons {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}
	return nil
}

func writeRuns(w io.Writer, format string, runs []domain.IngestRun) error {
	if runs == nil {
		runs = []domain.IngestRun{}
	}
	if done, err := writeStructured(w, format, runs); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tDISCOVERED\tEXISTING\tSUBMITTED\tDRY RUN\tERROR")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%t\t%s\n",
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Duration().Round(time.Millisecond),
			run.Discovered,
			run.Existing,
			run.Submitted,
			run.DryRun,
			run.Error,
		)
	}
	return tw.Flush()
}

func writeRun(w io.Writer, run domain.IngestRun) error {
	verb := "Submitted"
	if run.DryRun {
		verb = "Would submit"
	}

	fmt.Fprintf(w, "Run %s: discovered %d files, built %d tiles, %d already in catalog\n",
		run.ID, run.Discovered, run.Built, run.Existing)
	fmt.Fprintf(w, "%s %d tiles\n", verb, len(run.Tiles))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, tile := range run.Tiles {
		fmt.Fprintf(tw, "  %s\t%s\n", tile.SensingTime.UTC().Format(time.RFC3339), tile.Path)
	}
	return tw.Flush()
}
