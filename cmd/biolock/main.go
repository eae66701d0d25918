package main

import "github.com/adiprasetyo/biolock/internal/cli"

func main() {
	cli.Execute()
}
