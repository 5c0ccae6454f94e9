package main

import "portfolio-assistant/internal/commands"

func main() {
	commands.Execute()
}
