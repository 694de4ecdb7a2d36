package main

import "github.com/vietddude/pricewatch/internal/cli"

func main() {
	cli.Execute()
}
