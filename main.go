package main

import "github.com/iqtlabs/gamutrf/cmd"

func main() {
	cmd.Execute()
}
