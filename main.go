// main.go
//
// Entry point for tam-sim; all command handling lives in cmd/.

package main

import (
	"github.com/inference-sim/tam-sim/cmd"
)

func main() {
	cmd.Execute()
}
