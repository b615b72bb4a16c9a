// Copyright © 2018 One Concern

package main

import "github.com/oneconcern/relman/cmd/relman/cmd"

func main() {
	cmd.Execute()
}
