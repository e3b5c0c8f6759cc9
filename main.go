package main

import "plinth/cli"

func main() {
	cli.Execute()
}
