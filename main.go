package main

import "github.com/tanq16/hreq/cmd"

func main() {
	cmd.Execute()
}
