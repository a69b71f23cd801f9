package main

import "github.com/s22625/sqwatch/internal/cli"

func main() {
	cli.Execute()
}
