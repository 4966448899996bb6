// go-meshsync synchronizes building objects between nodes of a low bandwidth radio mesh.
package main

import (
	"fmt"
	"os"

	"github.com/meshsync/go-meshsync/cmd"
	"github.com/meshsync/go-meshsync/cmd/node"
)

var (
	version string
	commit  string
	branch  string
)

func main() { // run the app
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := node.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
