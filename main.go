package main

import (
	"os"

	"github.com/tudl/bugit/cmd"
)

// coverageServerAddr is where binaries built with -cover serve their coverage data when BUGIT_COVERAGE_SERVER=true
const coverageServerAddr = "localhost:8089"

func main() {
	if os.Getenv("BUGIT_COVERAGE_SERVER") == "true" {
		startCoverageServer(coverageServerAddr)
	}

	cmd.Execute()
}
