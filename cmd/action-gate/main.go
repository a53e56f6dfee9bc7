package main

import "github.com/action-gate/actiongate/cmd/action-gate/cmd"

func main() {
	cmd.Execute()
}
