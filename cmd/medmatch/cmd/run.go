package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/admitkit/medmatch"
	"github.com/admitkit/medmatch/internal/config"
	"github.com/admitkit/medmatch/pkg/pipeline"
)

var (
	runForce      bool
	runJSONReport bool
)

var runCmd = &cobra.Command{
	Use:   "run <records.csv>",
	Short: "Run an import batch from a CSV of staging records",
	Long: `Reads staging rows from a CSV file with the header
college,address,state,course,category,quota,year,round,rank
and runs them through the reconciliation pipeline. The batch report is
printed when the run completes or halts for review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecords(args[0])
		if err != nil {
			return err
		}
		if max := config.BatchSize(); max > 0 && len(records) > max {
			return fmt.Errorf("%s has %d rows, over the configured batch size of %d; split the file and run again", args[0], len(records), max)
		}

		mm, err := newClient(medmatch.WithForceCommit(runForce))
		if err != nil {
			return err
		}

		rep, err := mm.ProcessBatch(cmd.Context(), records)
		if err != nil {
			return err
		}
		if err := printReport(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
		// A halted batch exits nonzero so scripted imports notice.
		return rep.Err()
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force-commit", false, "commit even below the completeness threshold")
	runCmd.Flags().BoolVar(&runJSONReport, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(runCmd)
}

// newClient builds the facade from the configured surface.
func newClient(extra ...medmatch.Option) (medmatch.MedMatch, error) {
	opts := []medmatch.Option{
		medmatch.WithMasterDataDir(config.MasterDataDir()),
		medmatch.WithThresholds(config.Thresholds()),
		medmatch.WithWorkers(config.Workers()),
		medmatch.WithCompletenessThreshold(config.CompletenessThreshold()),
	}
	return medmatch.New(append(opts, extra...)...)
}

// readRecords parses the staging CSV. The first row must be the header.
func readRecords(path string) ([]pipeline.StagingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 9
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var records []pipeline.StagingRecord
	row := 1
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", row, err)
		}
		rec := pipeline.StagingRecord{
			Row:         row,
			CollegeName: fields[0],
			Address:     fields[1],
			State:       fields[2],
			Course:      fields[3],
			Category:    fields[4],
			Quota:       fields[5],
		}
		// Malformed numbers stay zero so the pipeline's own validation
		// rejects the row instead of aborting the whole file.
		rec.Year, _ = strconv.Atoi(fields[6])
		rec.Round, _ = strconv.Atoi(fields[7])
		rec.Rank, _ = strconv.Atoi(fields[8])
		records = append(records, rec)
		row++
	}
	return records, nil
}

func printReport(w io.Writer, rep *pipeline.Report) error {
	if runJSONReport {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(w, "Batch %s finished in state %s\n", rep.BatchID, rep.State)
	fmt.Fprintf(w, "  imported:       %d\n", rep.Imported)
	fmt.Fprintf(w, "  matched:        %d\n", rep.Matched)
	fmt.Fprintf(w, "  unmatched:      %d\n", rep.Unmatched)
	fmt.Fprintf(w, "  pending review: %d\n", rep.PendingCount)
	fmt.Fprintf(w, "  row errors:     %d\n", rep.ErrorCount)
	fmt.Fprintf(w, "  completeness:   %.1f%%\n", rep.Completeness*100)
	if rep.State == pipeline.StateHaltForReview {
		fmt.Fprintf(w, "Halted: completeness below the configured threshold; resolve pending reviews or rerun with --force-commit\n")
	}
	for kind, count := range rep.ErrorsByKind {
		fmt.Fprintf(w, "  %s: %d\n", kind, count)
	}
	return nil
}
