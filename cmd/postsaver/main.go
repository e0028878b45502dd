package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "postsaver/core/cmd"
	"postsaver/internal/bot"
)

func main() {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: bot.Bootstrap,
	})
	if err != nil {
		log.Fatalf("postsaver: %v", err)
	}
}
