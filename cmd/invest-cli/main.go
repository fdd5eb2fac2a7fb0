package main

import "invest-core/cmd/invest-cli/cmd"

func main() {
	cmd.Execute()
}
