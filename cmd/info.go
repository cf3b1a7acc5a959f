// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/Thermoquad/scribe/pkg/onewire"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Check presence and read the ROM code",
	Long: `Reset the bus, read the ROM code of the device and check that it is a DS2431.

Read ROM only works with a single device on the bus. With several devices the
codes collide and the CRC check fails; address a known device with --rom and
this command reads its first row instead.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	dev, conn, connInfo, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Scribe - Device Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	if addr, ok := dev.Address(); ok {
		fmt.Printf("Selected ROM: %s\n", addr)
	} else {
		addr, err := dev.Identify()
		switch {
		case errors.Is(err, onewire.ErrNoPresence):
			return fmt.Errorf("no device on the bus")
		case errors.Is(err, ds2431.ErrWrongFamily):
			fmt.Printf("ROM:    %s\n", addr)
			return err
		case err != nil:
			return fmt.Errorf("read ROM failed: %w", err)
		}
		fmt.Printf("ROM:    %s\n", addr)
		fmt.Printf("Family: 0x%02X (DS2431)\n", addr.Family())
		fmt.Printf("Serial: %012X\n", addr.Serial())
		fmt.Printf("CRC:    0x%02X\n", addr.CRC())
	}

	row := make([]byte, ds2431.RowSize)
	if err := dev.Read(0, row); err != nil {
		return err
	}
	fmt.Printf("\n%s\n", ds2431.FormatRow(0, row))
	return nil
}
