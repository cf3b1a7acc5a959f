// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/spf13/cobra"
)

var writeVerify bool

var writeCmd = &cobra.Command{
	Use:   "write <address> <hex>",
	Short: "Write bytes to EEPROM",
	Long: `Write hex data starting at address, one row at a time.

Rows only partly covered by the data keep their other bytes. Each row is
staged in the scratchpad and checked before it is copied to EEPROM. With
--verify the staged data is always read back and compared; without it the
read-back happens only when the chip reports a CRC error or a bad status.

Examples:
  scribe --sim write 0x10 "01 02 03 04 05 06 07 08"
  scribe -p /dev/ttyUSB0 write 0x05 deadbeef --verify`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().BoolVar(&writeVerify, "verify", false, "Always read back and compare the staged data")
}

func runWrite(cmd *cobra.Command, args []string) error {
	address, err := parseMemoryAddress(args[0])
	if err != nil {
		return err
	}
	data, err := parseHexData(args[1])
	if err != nil {
		return err
	}

	dev, conn, _, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := dev.WriteMemory(address, data, writeVerify); err != nil {
		return err
	}

	readBack := make([]byte, len(data))
	if err := dev.Read(address, readBack); err != nil {
		return err
	}
	fmt.Printf("Wrote %d byte(s) at 0x%02X\n", len(data), address)
	fmt.Print(ds2431.FormatMemory(address, readBack))
	return nil
}
