package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/seedpost/seedpost/internal/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the upload ledger",
		Long: `Inspect the ledger of published artifacts. The ledger file is locked by a
running uploader; query GET /api/v1/ledger on the status server instead.`,
	}
	cmd.PersistentFlags().String("path", "", "Ledger file, overrides ledger.path from configuration")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print ledger records, oldest first",
		RunE:  runLedgerList,
	}
	list.Flags().String("format", "", "Output format (json)")

	check := &cobra.Command{
		Use:   "check",
		Short: "Report whether the ledger file can be loaded",
		RunE:  runLedgerCheck,
	}

	cmd.AddCommand(list, check)
	return cmd
}

func ledgerPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("path")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Ledger.Path, nil
}

// openReadOnly loads the ledger without moving a corrupted file aside
func openReadOnly(cmd *cobra.Command) (*ledger.LoadOutcome, error) {
	path, err := ledgerPath(cmd)
	if err != nil {
		return nil, err
	}
	outcome, err := ledger.Load(path, ledger.WithKeepCorrupt())
	if errors.Is(err, ledger.ErrLocked) {
		return nil, fmt.Errorf("%w; is the uploader running?", err)
	}
	return outcome, err
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	outcome, err := openReadOnly(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = outcome.Ledger.Close() }()

	if outcome.Corrupted {
		return fmt.Errorf("ledger is corrupted: %s", outcome.Reason)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	return printRecords(cmd.OutOrStdout(), outcome.Ledger.Records(), format)
}

type jsonRecord struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"publishedAt"`
	SizeBytes   int64     `json:"sizeBytes"`
}

func printRecords(out io.Writer, records []ledger.Record, format string) error {
	if format == "json" {
		rows := make([]jsonRecord, 0, len(records))
		for _, r := range records {
			rows = append(rows, jsonRecord{Key: r.Key, Name: r.DisplayName, PublishedAt: r.PublishedAt, SizeBytes: r.SizeBytes})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	table := tablewriter.NewWriter(out)
	table.Header("PUBLISHED", "SIZE", "NAME", "KEY")
	for _, r := range records {
		if err := table.Append(
			r.PublishedAt.Local().Format("2006-01-02 15:04"),
			humanize.IBytes(uint64(max(r.SizeBytes, 0))),
			r.DisplayName,
			r.Key,
		); err != nil {
			return fmt.Errorf("failed to format ledger record: %w", err)
		}
	}
	return table.Render()
}

func runLedgerCheck(cmd *cobra.Command, _ []string) error {
	outcome, err := openReadOnly(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = outcome.Ledger.Close() }()

	out := cmd.OutOrStdout()
	if outcome.Corrupted {
		_, _ = fmt.Fprintf(out, "%s: corrupted (%s)\n", outcome.Ledger.Path(), outcome.Reason)
		return errors.New("ledger check failed")
	}
	_, err = fmt.Fprintf(out, "%s: ok, %d records\n", outcome.Ledger.Path(), len(outcome.Ledger.Records()))
	return err
}
