package main

import (
	"github.com/sirupsen/logrus"

	"github.com/dadebr/EpubtoPDF/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		logrus.Fatalf("Error executing command: %v", err)
	}
}
