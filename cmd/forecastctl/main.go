package main

import (
	"os"

	"github.com/yungbote/smartinventory-backend/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
