package main

import "github.com/Toskysun/sdu-seat/cmd"

func main() {
	cmd.Execute()
}
