package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/obsync/obsync/pkg/config"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/store"
)

var (
	vaultName  string
	vaultOwner string
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vaults (create, list)",
}

var vaultCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new vault",
	Long: `Create a new vault owned by the given user.

Examples:
  obsync vault create --name notes --owner alice`,
	RunE: runVaultCreate,
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all vaults",
	RunE:  runVaultList,
}

func init() {
	vaultCreateCmd.Flags().StringVar(&vaultName, "name", "", "Vault name (required)")
	vaultCreateCmd.Flags().StringVar(&vaultOwner, "owner", "", "Owning user id (required)")
	_ = vaultCreateCmd.MarkFlagRequired("name")
	_ = vaultCreateCmd.MarkFlagRequired("owner")

	vaultCmd.AddCommand(vaultCreateCmd)
	vaultCmd.AddCommand(vaultListCmd)
}

// openStore opens the metadata store from the loaded configuration.
func openStore() (*config.Config, store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return cfg, st, nil
}

func runVaultCreate(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	vault := &model.Vault{
		ID:    uuid.New().String(),
		Name:  vaultName,
		Owner: vaultOwner,
	}

	id, err := st.CreateVault(context.Background(), vault)
	if err != nil {
		return fmt.Errorf("failed to create vault: %w", err)
	}

	fmt.Printf("Vault created: %s (name=%s, owner=%s)\n", id, vaultName, vaultOwner)
	return nil
}

func runVaultList(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	vaults, err := st.ListVaults(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list vaults: %w", err)
	}

	if len(vaults) == 0 {
		fmt.Println("No vaults found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOWNER\tCREATED")
	for _, v := range vaults {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Owner, v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
