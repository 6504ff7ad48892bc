// Package config loads configuration from the environment into an env-tagged
// struct (an optional .env file is read first) and validates the XP engine
// tuning knobs shared by live and backfill paths.
package config
