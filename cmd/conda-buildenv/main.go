package main

import "github.com/oshokin/conda-buildenv/cmd/conda-buildenv/cmd"

func main() {
	cmd.Execute()
}
