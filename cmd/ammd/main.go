package main

import "github.com/LeJamon/goAMMd/internal/cli"

func main() {
	cli.Execute()
}
