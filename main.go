package main

import "github.com/jmehdipour/mail-relay/cmd"

func main() {
	cmd.Execute()
}
