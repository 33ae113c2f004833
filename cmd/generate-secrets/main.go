package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/railbook/train-booking-backend/internal/utils"
)

func main() {
	bytes := flag.Int("bytes", 32, "secret length in bytes")
	flag.Parse()

	if *bytes < 32 {
		log.Fatalf("refusing to generate a JWT secret shorter than 32 bytes (got %d)", *bytes)
	}

	secret, err := utils.GenerateSecret(*bytes)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
}
