package main

import "coinmarketcap-history/internal/cli"

func main() {
	cli.Execute()
}
