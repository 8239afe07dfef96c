package main

import "github.com/leadworks/leadgate/cmd"

func main() {
	cmd.Execute()
}
