package main

import "llmquery/cmd"

func main() {
	cmd.Execute()
}
