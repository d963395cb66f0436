package main

import "github.com/custodia-labs/copilot-core/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
