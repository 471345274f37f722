package config

import "github.com/joho/godotenv"

// LoadDotEnv overlays .env files onto the process environment and returns
// the files it found. godotenv never overwrites variables that are already
// set, so the real environment always wins and .env.local shadows .env.
func LoadDotEnv() []string {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			loaded = append(loaded, name)
		}
	}
	return loaded
}
