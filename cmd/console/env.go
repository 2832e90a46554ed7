package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// envFileVar names the dotenv file to load instead of ./.env.
const envFileVar = "CONSOLE_ENV_FILE"

// loadDotEnv loads CONSOLE_* settings from a dotenv file before config.Load
// reads them. The file is ./.env unless CONSOLE_ENV_FILE names another one.
// A missing default file is fine; a missing named file is an error.
// Existing process environment variables are not overridden.
func loadDotEnv() error {
	path, named := os.LookupEnv(envFileVar)
	if !named || path == "" {
		path = ".env"
		named = false
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	if !named && errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}
