package main

import "github.com/philtim/timearchitect/cmd"

func main() {
	cmd.Execute()
}
