// Command fibctl is a manual-testing harness for fibcore: it builds a
// Manager from interface flags, in-memory, and issues a single
// add/delete/dump/dump-neighbors operation against it per invocation. It
// is not a client to a running appliance process — fibcore has no RPC
// surface of its own (spec.md §1 leaves the configuration front-end out
// of scope) — so fibctl exists purely to drive the library by hand while
// developing against it.
package main

import (
	"fmt"
	"os"

	"github.com/gatekeeper-fib/fibcore/cmd/fibctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
