package main

import "github.com/crewdeck/crewdeck/internal/cli"

func main() {
	cli.Execute()
}
