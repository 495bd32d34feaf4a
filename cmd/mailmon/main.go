package main

import "github.com/nhle/mailbox-monitor/internal/cli"

func main() {
	cli.Execute()
}
