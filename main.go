// Package main is the entry point for the strykr CLI.
package main

import "strykr.dev/pkg/strykr/cmd"

func main() {
	cmd.Execute()
}
