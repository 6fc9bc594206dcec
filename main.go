package main

import "github.com/qobs-build/kompile/cmd"

func main() {
	cmd.Execute()
}
