package main

import (
	"log"

	"github.com/MrSnakeDoc/tabkeeper/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ tabkeeper failed: %v", err)
	}
}
