package main

import "github.com/example/codecycle/cmd"

func main() {
	cmd.Execute()
}
