// Command tasksuite is the Task Suite terminal client.
package main

import (
	"os"

	"github.com/nhle/task-suite/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
