package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/rankworks/cv-ranker/cmd"
)

func main() {
	// Missing .env is fine; configuration may come from flags or a config file.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
