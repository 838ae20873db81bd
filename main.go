package main

import "agentctl/cmd"

// Set at build time via -ldflags "-X main.version=... -X main.releaseRepo=owner/name"
var (
	version     = "dev"
	releaseRepo = ""
)

func main() {
	cmd.SetVersion(version)
	cmd.SetReleaseRepo(releaseRepo)
	cmd.Execute()
}
