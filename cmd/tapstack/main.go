package main

import "github.com/tapstack/tapstack/pkg/cli"

func main() {
	cli.Main()
}
