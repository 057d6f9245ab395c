package main

import (
	"os"

	"walletconnect/cmd/walletconnect/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
