package main

import "martianoff/simc/cmd/simc/commands"

func main() {
	commands.Execute()
}
