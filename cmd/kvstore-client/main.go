// Command kvstore-client issues a single INSERT, UPDATE, GET, or DELETE
// command against a running kvstore-server and prints the result.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
