package main

import "github.com/vvatanabe/sqsredrive/internal/cmd"

func main() {
	cmd.Execute()
}
