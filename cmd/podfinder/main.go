package main

import "podfinder/internal/cli"

func main() {
	cli.Execute()
}
