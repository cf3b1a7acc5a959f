// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	dumpOutput  string
	dumpFormat  string
	dumpComment string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Read the whole EEPROM",
	Long: `Read all 128 bytes of EEPROM.

Formats:
  hex   hex dump with ASCII column (default)
  bin   raw 128-byte image
  cbor  CBOR image tagged with the ROM code, for use with load

Binary formats go to --output, or to stdout when it is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Output file (default stdout)")
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "hex", "Output format (hex, bin, cbor)")
	dumpCmd.Flags().StringVar(&dumpComment, "comment", "", "Comment stored in a CBOR image")
}

func runDump(cmd *cobra.Command, args []string) error {
	switch dumpFormat {
	case "hex", "bin", "cbor":
	default:
		return fmt.Errorf("unknown format %q (use hex, bin or cbor)", dumpFormat)
	}

	stdoutIsTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if dumpFormat != "hex" && dumpOutput == "" && stdoutIsTerminal {
		return fmt.Errorf("refusing to write %s to a terminal, use --output", dumpFormat)
	}

	dev, conn, connInfo, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer conn.Close()

	data, err := dev.ReadAll()
	if err != nil {
		return err
	}

	img, err := ds2431.NewImage(data)
	if err != nil {
		return err
	}
	img.Comment = dumpComment
	if addr, ok := dev.Address(); ok {
		img.Address, img.HasAddress = addr, true
	} else if addr, err := dev.Identify(); err == nil {
		img.Address, img.HasAddress = addr, true
	}

	var out []byte
	switch dumpFormat {
	case "hex":
		if dumpOutput == "" && stdoutIsTerminal {
			fmt.Println(renderDump(img, connInfo))
			return nil
		}
		out = []byte(ds2431.FormatMemory(0, img.Data[:]))
	case "bin":
		out = img.Data[:]
	case "cbor":
		out, err = ds2431.EncodeImage(img)
		if err != nil {
			return err
		}
	}

	if dumpOutput == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(dumpOutput, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dumpOutput, err)
	}
	fmt.Printf("Wrote %s image (%d bytes) to %s\n", dumpFormat, len(out), dumpOutput)
	return nil
}

// renderDump draws the image in a box for terminal output
func renderDump(img *ds2431.Image, connInfo string) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	rom := "unknown ROM"
	if img.HasAddress {
		rom = img.Address.String()
	}

	header := headerStyle.Render(fmt.Sprintf("%s | %s | %s", connInfo, rom, time.Now().Format("2006-01-02 15:04:05")))
	body := boxStyle.Render(ds2431.FormatMemory(0, img.Data[:]))
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("SCRIBE - EEPROM DUMP"), header, body)
}
