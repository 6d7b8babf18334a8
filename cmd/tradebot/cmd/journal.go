package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the audit trail",
	Long: `Query and display audit records from the SQLite journal.

Subcommands:
  today - List audit records written today
  day   - List audit records for a specific day
  fills - List fills for a specific day

Examples:
  tradebot journal today
  tradebot journal day 2025-06-02
  tradebot journal fills 2025-06-02`,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List audit records written today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List audit records for a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills <YYYY-MM-DD>",
	Short: "List fills for a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalFills,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalFillsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./tradebot.db", "path to SQLite journal DB")
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return printAuditsForDay(time.Now().UTC().Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return printAuditsForDay(args[0])
}

func printAuditsForDay(day string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListAuditsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query audits: %w", err)
	}

	if len(recs) == 0 {
		fmt.Printf("No audit records for %s\n", day)
		return nil
	}
	fmt.Printf("%-20s %-10s %-10s %-9s %-26s %-10s %10s %12s\n",
		"TIME", "INSTRUMENT", "ACTION", "RISK", "REASON", "EXEC", "FILL QTY", "FILL PRICE")
	for _, r := range recs {
		fmt.Printf("%-20s %-10s %-10s %-9s %-26s %-10s %10.4f %12.4f\n",
			r.Time.Format("2006-01-02 15:04:05"),
			r.Instrument, r.Action, r.RiskOutcome, r.RiskReason,
			r.ExecOutcome, r.FillQuantity, r.FillPrice)
	}
	fmt.Printf("\n%d records\n", len(recs))
	return nil
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	fills, err := j.ListFillsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}

	if len(fills) == 0 {
		fmt.Printf("No fills for %s\n", args[0])
		return nil
	}
	fmt.Printf("%-20s %-10s %-5s %10s %12s\n", "TIME", "INSTRUMENT", "SIDE", "QTY", "PRICE")
	for _, f := range fills {
		fmt.Printf("%-20s %-10s %-5s %10.4f %12.4f\n",
			f.Time.Format("2006-01-02 15:04:05"), f.Instrument, f.Side, f.Quantity, f.Price)
	}
	return nil
}

func dayBounds(day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return t, t.Add(24 * time.Hour), nil
}
