// file: main.go
// version: 1.0.0
// guid: 0b3e7a9d-5c1f-4d8b-a6e2-9f4c0d7b3e51

package main

import (
	"fmt"
	"os"

	"bookloft/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
