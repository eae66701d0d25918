package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adiprasetyo/biolock/internal/biolock/embeddings"
)

func init() {
	rootCmd.AddCommand(usersCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

func runUsers(cmd *cobra.Command, args []string) error {
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

	embStore, err := embeddings.OpenFile(cfg.EmbeddingsPath)
	if err != nil {
		return fmt.Errorf("open embeddings: %w", err)
	}

	ids, err := st.Identities.List(ctx)
	if err != nil {
		return fmt.Errorf("list identities: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tFACES\tLEVEL\tLAST ACCESS")
	for _, id := range ids {
		template := "-"
		if id.FingerTemplateID != nil {
			template = fmt.Sprintf("%d", *id.FingerTemplateID)
		}
		refs, err := embStore.References(ctx, id.ID)
		if err != nil {
			return fmt.Errorf("read references: %w", err)
		}
		last := "-"
		if id.LastAccess != nil {
			last = id.LastAccess.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			id.ID, id.Name, template, len(refs), id.AccessLevel, last)
	}
	return w.Flush()
}
