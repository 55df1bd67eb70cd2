package main

import (
	"paperguild/cmd/cmd"
	"paperguild/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
