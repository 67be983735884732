package main

import "github.com/dqguardrail/guardrail/cmd"

func main() {
	cmd.Execute()
}
