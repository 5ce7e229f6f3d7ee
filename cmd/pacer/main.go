package main

import (
	"fmt"
	"os"

	"github.com/thruflo/pacer/internal/cli"
)

func main() {
	code, err := cli.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
