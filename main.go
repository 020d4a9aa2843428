package main

import "github.com/devopsext/proflog/cmd"

func main() {
	cmd.Execute()
}
