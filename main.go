package main

import "github.com/CraigKelly/bayesmc/cmd"

func main() {
	cmd.Execute()
}
