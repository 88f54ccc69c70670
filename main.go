package main

import "github.com/darmiel/lastword/cmd"

func main() {
	cmd.Execute()
}
