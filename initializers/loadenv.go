package initializers

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a local .env file when one exists.
func LoadEnv() error {
	log.Println("Loading env file")
	if err := godotenv.Load(); err != nil {
		log.Println("env not loading")
		return fmt.Errorf("env not loading")
	}
	log.Println("Env loaded successfully")
	return nil
}
