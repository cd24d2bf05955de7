package main

import (
	"os"

	"github.com/MeKo-Tech/qrlens/cmd/qrlens/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
