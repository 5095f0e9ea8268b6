package main

import "github.com/mholtzman/chirp8/cmd"

func main() {
	cmd.Execute()
}
