// Package main provides the entry point for the promptline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/promptline-ai/promptline/cmd/promptline/commands"
)

func main() {
	code, err := commands.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
