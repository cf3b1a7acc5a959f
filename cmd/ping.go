// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/scribe/pkg/onewire"
	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval int
	pingROM      bool
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the bus with repeated reset pulses",
	Long: `Send reset pulses and report presence and round-trip time for each.

With --read-rom every ping also reads the ROM code and checks its CRC, which
catches bit errors on a marginal bus or a slow bridge link. Only valid with a
single device on the bus.

Exit codes:
  0 - All pings answered
  1 - One or more pings failed
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 5, "Number of pings to send")
	pingCmd.Flags().IntVar(&pingInterval, "interval", 200, "Delay between pings (milliseconds)")
	pingCmd.Flags().BoolVar(&pingROM, "read-rom", false, "Read and check the ROM code on every ping")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Scribe - Bus Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	var totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		var addr onewire.Address
		if pingROM {
			addr, err = onewire.ReadROM(conn)
		} else {
			err = conn.Reset()
		}
		rtt := time.Since(startTime)
		_ = conn.Depower()

		switch {
		case errors.Is(err, onewire.ErrNoPresence):
			fmt.Printf("NO PRESENCE, rtt=%v\n", rtt.Round(time.Microsecond))
			failCount++
		case errors.Is(err, onewire.ErrCRC):
			fmt.Printf("ROM CRC ERROR: %v\n", err)
			failCount++
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		case pingROM:
			fmt.Printf("PRESENT %s, rtt=%v\n", addr, rtt.Round(time.Microsecond))
			successCount++
			totalRTT += rtt
		default:
			fmt.Printf("PRESENT, rtt=%v\n", rtt.Round(time.Microsecond))
			successCount++
			totalRTT += rtt
		}

		if i < pingCount {
			time.Sleep(time.Duration(pingInterval) * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d answered, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(max(pingCount, 1))*100)
	if successCount > 0 {
		fmt.Printf("average rtt=%v\n", (totalRTT / time.Duration(successCount)).Round(time.Microsecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
