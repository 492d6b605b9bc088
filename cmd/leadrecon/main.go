package main

import "lead-recon/internal/cli"

func main() {
	cli.Execute()
}
