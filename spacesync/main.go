// Package main provides the spacesync command.
package main

import "github.com/spacegame/netsync/spacesync/cmd"

func main() {
	cmd.Execute()
}
