// Command failinj-harness drives the engine against the in-memory
// Fake primitives and, with -v, prints the decision and injection
// counts afterward, useful
// for poking at the engine's behavior without building the cgo shared
// object or linking against a real program.
//
//	go run ./cmd/failinj-harness -scenario leak
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fenwick-labs/failinj"
)

var scenarios = map[string]func() int{
	"clean": func() int {
		addr, err := failinj.Malloc(64)
		if err != nil {
			return reportErr(err)
		}
		failinj.Free(addr)
		return 0
	},
	"leak": func() int {
		_, err := failinj.Malloc(64)
		if err != nil {
			return reportErr(err)
		}
		return 0
	},
	"untracked-close": func() int {
		return reportErr(failinj.Close(99))
	},
	"sequence": func() int {
		for i := 0; i < 8; i++ {
			addr, err := failinj.Malloc(uintptr(16 * (i + 1)))
			if err != nil {
				continue
			}
			failinj.Free(addr)
		}
		return 0
	},
}

func main() {
	var (
		scenario = flag.String("scenario", "clean", "scenario to run: clean, leak, untracked-close, sequence")
		verbose  = flag.Bool("v", false, "print the decision and injection counts after the run")
	)
	flag.Parse()

	fn, ok := scenarios[*scenario]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown scenario %q\n", *scenario)
		os.Exit(2)
	}

	observer := failinj.NewRecordingObserver()
	failinj.SetObserver(observer)

	code := failinj.Run(fn)

	if *verbose {
		fmt.Printf("decisions=%d injections=%d\n", len(observer.Decisions), observer.InjectionCount())
	}

	os.Exit(code)
}

func reportErr(err error) int {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
