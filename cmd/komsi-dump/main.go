// Command komsi-dump decodes a captured KOMSI byte stream and prints the
// commands it carries plus the state a fresh receiver would end up in.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/busdash/komsi-bridge/internal/komsi"
)

var (
	inPath  = flag.String("in", "-", "Input file, or - for stdin")
	asJSON  = flag.Bool("json", false, "Print the final state as JSON")
	skipBad = flag.Bool("lenient", false, "Keep applying commands that do not fit the state model")
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inPath != "-" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "komsi-dump: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	stream, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "komsi-dump: read input: %v\n", err)
		os.Exit(1)
	}

	cmds, err := komsi.Decode(stream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "komsi-dump: %v\n", err)
		os.Exit(1)
	}

	state := komsi.New()
	for _, cmd := range cmds {
		fmt.Printf("%-20s %d\n", cmd.Kind, cmd.Value)
		if err := state.Apply([]komsi.Command{cmd}); err != nil {
			if *skipBad {
				fmt.Fprintf(os.Stderr, "komsi-dump: skipping: %v\n", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "komsi-dump: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("\n%d commands\n", len(cmds))
	if *asJSON {
		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "komsi-dump: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}
	for _, f := range komsi.Fields() {
		fmt.Printf("%-20s %d\n", f, state.Get(f))
	}
}
