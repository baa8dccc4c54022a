// cmd/hrdesk/main.go
package main

import (
	cmd "github.com/acmecorp/hrdesk/internal/cli"
)

var executeCmd = cmd.Execute

// main starts the hrdesk CLI application by delegating to the cobra root
// command. It does not take any arguments and does not return a value.
func main() {
	executeCmd()
}
