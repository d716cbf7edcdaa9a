package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads env files from dir with priority
// .env.local > .env.<APP_ENV> > .env.
// godotenv.Load never overwrites variables that are already set, so the
// process environment always wins. Returns the files actually loaded.
func LoadDotEnv(dir string) []string {
	candidates := []string{".env.local"}
	if env := os.Getenv("APP_ENV"); env != "" {
		candidates = append(candidates, ".env."+env)
	}
	candidates = append(candidates, ".env")

	var loaded []string
	for _, name := range candidates {
		f := filepath.Join(dir, name)
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

// ConfigPath returns configs/config.<APP_ENV>.yaml, defaulting to local
func ConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return filepath.Join("configs", "config."+env+".yaml")
}
