// Command ledgerctl inspects the durable position ledger: replay and verify
// the transition log, list positions, and export reports.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
