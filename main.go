package main

import "github.com/khenlevy/ai-army/cmd"

func main() {
	cmd.Execute()
}
