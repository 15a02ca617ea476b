package main

import (
	"log"

	corecmd "github.com/annaleodit/Celebrate-the-world/core/cmd"
	"github.com/annaleodit/Celebrate-the-world/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}
