package main

import "github.com/felixgeelhaar/hemv/cmd/hemv/cli"

func main() {
	cli.Execute()
}
