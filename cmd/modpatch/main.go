package main

import "modpatch/internal/cli"

func main() {
	cli.Execute()
}
