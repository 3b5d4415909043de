// Package main はrenew-agentのエントリーポイント。
package main

import (
	"os"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/cli"
)

// version はビルド時に -ldflags "-X main.version=..." で上書きする
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
