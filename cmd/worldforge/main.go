package main

import "github.com/MeKo-Tech/worldforge/internal/cmd"

func main() {
	cmd.Execute()
}
