// Command drawclient is a headless drawing client: it joins a room, replays
// strokes and fills given on the command line, and writes what it sees to a PNG.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
