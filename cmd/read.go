// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <address> [length]",
	Short: "Read bytes from EEPROM",
	Long: `Read length bytes (default one row) starting at address and print them as a
hex dump. Addresses accept decimal or 0x-prefixed hex.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	address, err := parseMemoryAddress(args[0])
	if err != nil {
		return err
	}

	length := ds2431.RowSize
	if len(args) > 1 {
		n, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid length %q", args[1])
		}
		length = int(n)
	}
	if int(address)+length > ds2431.MemorySize {
		length = ds2431.MemorySize - int(address)
	}

	dev, conn, _, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, length)
	if err := dev.Read(address, buf); err != nil {
		return err
	}

	fmt.Print(ds2431.FormatMemory(address, buf))
	return nil
}
