package main

import "github.com/justDance-everybody/Taskbot-MVP/services/taskbot/cli"

func main() {
	cli.Execute()
}
