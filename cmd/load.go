// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/spf13/cobra"
)

var (
	loadVerify bool
	loadAll    bool
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Program an EEPROM image",
	Long: `Program an image written by dump (CBOR or raw 128-byte binary).

Only rows that differ from the chip are written unless --all is given. When
the image carries a ROM code and --rom is not set, the device with that code
is addressed. Write statistics are printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVar(&loadVerify, "verify", false, "Always read back and compare the staged data")
	loadCmd.Flags().BoolVar(&loadAll, "all", false, "Write every row, not only changed ones")
}

func runLoad(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	img, err := ds2431.DecodeImage(raw)
	if err != nil {
		return err
	}

	dev, conn, connInfo, stats, err := OpenDevice()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, ok := dev.Address(); !ok && img.HasAddress {
		dev.SetAddress(img.Address)
	}

	fmt.Printf("Scribe - Image Load\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if addr, ok := dev.Address(); ok {
		fmt.Printf("Device: %s\n", addr)
	}
	if img.Comment != "" {
		fmt.Printf("Comment: %s\n", img.Comment)
	}
	fmt.Println()

	rows := ds2431.AllRows()
	if !loadAll {
		current, err := dev.ReadAll()
		if err != nil {
			return err
		}
		rows, err = img.ChangedRows(current)
		if err != nil {
			return err
		}
	}

	if len(rows) == 0 {
		fmt.Println("EEPROM already matches the image")
		return nil
	}

	failed := 0
	for _, addr := range rows {
		if err := dev.Write(addr, img.Row(addr), loadVerify); err != nil {
			fmt.Printf("[FAIL] %v\n", err)
			failed++
			continue
		}
		fmt.Printf("[ OK ] %s\n", ds2431.FormatRow(addr, img.Row(addr)))
	}

	fmt.Println()
	fmt.Print(stats.String())

	if failed > 0 {
		return fmt.Errorf("%d of %d row(s) failed", failed, len(rows))
	}
	return nil
}
