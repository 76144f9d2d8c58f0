package main

import "github.com/LENAX/workflow-engine/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
