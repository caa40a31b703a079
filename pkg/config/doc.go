// Package config loads typed configuration from the environment.
//
// Dotenv files are read first with github.com/joho/godotenv, then the process
// environment is parsed into a struct with github.com/caarlos0/env/v11:
//
//	type Config struct {
//		Billing billing.Config
//		Postgres pg.Config
//	}
//
//	cfg, err := config.Load[Config]()
//
// Tests pass WithEnvironment to avoid touching the process environment.
package config
