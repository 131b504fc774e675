package main

import "github.com/devicelab-dev/ui-coverage/pkg/cli"

func main() {
	cli.Execute()
}
