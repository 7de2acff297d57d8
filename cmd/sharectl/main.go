package main

import "locshare-relay/cmd/sharectl/command"

func main() {
	command.Execute()
}
