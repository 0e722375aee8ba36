package env

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnv loads .env files into the process environment. Missing files are
// not an error; variables already set take precedence.
func LoadEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Msg("No .env file found, using system environment variables")
			return nil
		}
		return err
	}

	return nil
}
