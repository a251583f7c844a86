package main

import "github.com/brogergvhs/sushidl/cmd"

func main() {
	cmd.Execute()
}
