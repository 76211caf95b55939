package main

import "github.com/tomasvold/Drum-Cheat-Sheet/cmd"

func main() {
	cmd.Execute()
}
