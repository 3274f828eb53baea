package main

import (
	"os"

	"github.com/Zhima-Mochi/stock-ledger/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
