package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsync/obsync/pkg/model"
)

var (
	deviceID        string
	deviceOwner     string
	deviceName      string
	devicePublicKey string
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage devices (register)",
}

var deviceRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a device for a user",
	Long: `Register a device owned by the given user. The public key is stored
opaque; clients use it to wrap key envelopes for each other.

Examples:
  obsync device register --owner alice --name laptop --public-key "$(cat device.pub)"`,
	RunE: runDeviceRegister,
}

func init() {
	deviceRegisterCmd.Flags().StringVar(&deviceID, "id", "", "Device id (default: generated)")
	deviceRegisterCmd.Flags().StringVar(&deviceOwner, "owner", "", "Owning user id (required)")
	deviceRegisterCmd.Flags().StringVar(&deviceName, "name", "", "Display name")
	deviceRegisterCmd.Flags().StringVar(&devicePublicKey, "public-key", "", "Device public key")
	_ = deviceRegisterCmd.MarkFlagRequired("owner")

	deviceCmd.AddCommand(deviceRegisterCmd)
}

func runDeviceRegister(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	device := &model.Device{
		ID:          deviceID,
		Owner:       deviceOwner,
		DisplayName: deviceName,
		PublicKey:   devicePublicKey,
	}

	id, err := st.CreateDevice(context.Background(), device)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	fmt.Printf("Device registered: %s (owner=%s)\n", id, deviceOwner)
	return nil
}
