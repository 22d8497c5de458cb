// Package config loads process configuration from environment variables.
//
// Configuration structs declare their variables with `env` and `envDefault`
// tags understood by github.com/caarlos0/env/v11. A local `.env` file is loaded
// through github.com/joho/godotenv before the first parse so development
// setups do not need exported variables.
//
// Every component of the service owns its configuration type (billing
// providers, the mongo client, the HTTP server) and loads it independently:
//
//	var httpCfg httpserver.Config
//	config.MustLoad(&httpCfg)
//
//	var mongoCfg mongo.Config
//	config.MustLoad(&mongoCfg)
//
// Parsed values are cached per type for the lifetime of the process. Tests
// that change the environment between loads call Reset.
package config
