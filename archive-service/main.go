package main

import "github.com/redhat-et/script-archive/archive-service/cmd"

func main() {
	cmd.Execute()
}
