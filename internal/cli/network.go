/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luminet/luminet-go/ble"
	"github.com/luminet/luminet-go/cloud"
	"github.com/luminet/luminet-go/luminet"
)

var prepareNetworkCmd = &cobra.Command{
	Use:   "prepare-network",
	Short: "Resolve a network's BLE MAC address, log in and refresh its cached descriptor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		if !viper.IsSet("mac") {
			return fmt.Errorf("the unit's BLE MAC address (--mac) is required")
		}
		if !viper.IsSet("password") {
			return fmt.Errorf("the network password (--password) is required")
		}
		mac := viper.GetString("mac")
		password := viper.GetString("password")
		deviceName := viper.GetString("device-name")

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		client := luminet.New(luminet.Config{
			Endpoint: ble.NewMemory(nil),
			Cloud:    cloud.NewHTTPClient(cloudURL),
			Store:    store,
		})

		networkID, err := client.PrepareNetwork(cmd.Context(), mac, password, deviceName)
		if err != nil {
			return fmt.Errorf("prepare network: %w", err)
		}
		fmt.Fprintln(os.Stdout, networkID)
		return nil
	},
}

var resolveFixtureCmd = &cobra.Command{
	Use:   "resolve-fixture <fixture-id>",
	Short: "Print the control layout for a fixture type, from cache or the cloud catalogue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		var fixtureID int
		if _, err := fmt.Sscanf(args[0], "%d", &fixtureID); err != nil {
			return fmt.Errorf("invalid fixture id %q: %w", args[0], err)
		}

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		client := luminet.New(luminet.Config{
			Endpoint: ble.NewMemory(nil),
			Cloud:    cloud.NewHTTPClient(cloudURL),
			Store:    store,
		})

		typ, err := client.ResolveFixture(cmd.Context(), fixtureID)
		if err != nil {
			return fmt.Errorf("resolve fixture %d: %w", fixtureID, err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(typ)
	},
}

func init() {
	rootCmd.AddCommand(prepareNetworkCmd)
	prepareNetworkCmd.Flags().String("mac", "", "BLE MAC address of a unit on the target network")
	prepareNetworkCmd.Flags().String("password", "", "Network password")
	prepareNetworkCmd.Flags().String("device-name", "luminetctl", "Device name to present to the cloud during login")

	rootCmd.AddCommand(resolveFixtureCmd)
}
