// Package config loads typed configuration structs from environment
// variables, with optional `.env` file support for local development.
//
// It wraps github.com/caarlos0/env/v11 for struct-tag parsing and
// github.com/joho/godotenv for the `.env` file. Each struct type is parsed
// once per process and cached, so components can load their own config
// independently without repeated environment reads.
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
package config
