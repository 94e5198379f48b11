// Command basketindex computes market-cap weighted basket indices.
package main

import (
	"os"

	"basket-index/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
