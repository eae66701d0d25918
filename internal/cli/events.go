package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var eventsLimit int

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "maximum number of events to show")
	rootCmd.AddCommand(eventsCmd)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the recent access audit trail",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	evs, err := st.Events.Recent(ctx, eventsLimit)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tIDENTITY\tMETHOD\tOK\tMESSAGE")
	for _, ev := range evs {
		ident := "-"
		if ev.IdentityID != nil {
			ident = fmt.Sprintf("%d", *ev.IdentityID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			ev.Timestamp.Format("2006-01-02 15:04:05"), ident, ev.Method, ev.Success, ev.Message)
	}
	return w.Flush()
}
