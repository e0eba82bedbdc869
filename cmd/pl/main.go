package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// shorthands expands the one-letter subcommands pl accepts.
var shorthands = map[string]string{
	"p": "pert",
	"g": "gantt",
	"d": "dot",
	"s": "serve",
	"c": "check",
}

// argv builds the pertloom argument list, expanding a leading shorthand.
// Flags before the subcommand are passed through untouched.
func argv(args []string) []string {
	out := append([]string{"pertloom"}, args...)
	for i := 1; i < len(out); i++ {
		if len(out[i]) > 0 && out[i][0] == '-' {
			continue
		}
		if full, ok := shorthands[out[i]]; ok {
			out[i] = full
		}
		break
	}
	return out
}

// pl replaces itself with pertloom.
func main() {
	bin, err := exec.LookPath("pertloom")
	if err != nil {
		fmt.Fprintln(os.Stderr, "pl: pertloom not found on PATH")
		os.Exit(1)
	}
	if err := syscall.Exec(bin, argv(os.Args[1:]), os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "pl: %v\n", err)
		os.Exit(1)
	}
}
