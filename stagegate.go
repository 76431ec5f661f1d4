package main

import (
	"github.com/stagegate/stagegate/cmd"
)

func main() {
	cmd.Execute()
}
