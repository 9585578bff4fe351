package main

import (
	"os"
	_ "time/tzdata"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)
	if err := newRootCommand().Execute(); err != nil {
		utils.Logger.WithError(err).Error("turnflow exited with error")
		os.Exit(1)
	}
}
