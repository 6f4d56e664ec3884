package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultEnvFile = ".env"

// LoadDotEnv reads the file named by SALESQL_ENV_FILE (default .env) into the
// process environment. Variables that are already set are left untouched and
// a missing default file is not an error.
func LoadDotEnv() error {
	path, explicit := os.LookupEnv("SALESQL_ENV_FILE")
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultEnvFile
		explicit = false
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
