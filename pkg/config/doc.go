// Package config loads typed configuration structs from the environment using
// caarlos0/env, with optional .env support through joho/godotenv.
//
// Every package that needs settings declares a Config struct with `env` tags;
// the service binary loads each of them once at startup:
//
//	var (
//		pgCfg    pg.Config
//		emailCfg email.Config
//	)
//	config.MustLoad(&pgCfg)
//	config.MustLoad(&emailCfg)
package config
