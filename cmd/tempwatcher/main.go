package main

import (
	"tempwatcher/internal/cli"
)

func main() {
	cli.Execute()
}
