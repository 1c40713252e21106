package main

import "goldbridge/internal/cli"

func main() {
	cli.Execute()
}
