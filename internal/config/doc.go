// Package config loads docrag settings with viper.
//
// Precedence, lowest first: built-in defaults, the optional config file
// (YAML, TOML or JSON by extension), a .env file in the working directory,
// and DOCRAG_* environment variables. Nested keys use an underscore in the
// environment, so embedding.provider is DOCRAG_EMBEDDING_PROVIDER.
package config
