package main

import "github.com/newsloom/newsloom/cmd"

func main() {
	cmd.Execute()
}
