// Command feedctl is the inspection and maintenance CLI for minifeed.
//
// Usage:
//
//	feedctl item <id>            Fetch one item
//	feedctl items <id,id,...>    Fetch several items
//	feedctl search <query>       Full-text search
//	feedctl metrics <report>     Dashboard metrics (overview, ctr, dau, ...)
//	feedctl history              Items, stays and relations seen locally
//	feedctl events               JSONL event log viewer
//	feedctl serve-mock           Run the in-memory fake backend
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
