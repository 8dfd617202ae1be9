package main

import "lumina/cmd"

func main() {
	cmd.Run()
}
