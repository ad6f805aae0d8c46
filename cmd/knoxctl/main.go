package main

import "github.com/arbetsytan/knox/internal/cli"

func main() {
	cli.Execute()
}
