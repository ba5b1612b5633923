package main

import "github.com/letterstack/ms-go-account/cmd"

func main() {
	cmd.Execute()
}
