package main

import "github.com/vietddude/nutriscan/internal/cli"

func main() {
	cli.Execute()
}
