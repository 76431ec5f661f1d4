// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads TOML/YAML configuration files through viper with
// environment variable overrides.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	// FileDirectory is the primary configuration file search path, settable
	// from the command line.
	FileDirectory string
)

// Load merges the named configuration file into viper. Returns false when no
// file was found, which is fatal only when required is set.
func Load(configFileName string, required bool) bool {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath(ResolvePath(FileDirectory))
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.stagegate")
	viper.AddConfigPath("/usr/local/etc/stagegate/")
	viper.AddConfigPath("/etc/stagegate/")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if required {
				log.Fatal().Msgf("Config file not found: %s", configFileName)
			}
			log.Info().Msgf("Config file not found: %s", configFileName)
			return false
		}

		if required {
			log.Fatal().Msgf("Failed to load required config file: %s", configFileName)
		}
		return false
	}
	log.Info().Msgf("Loaded config file: %s", viper.ConfigFileUsed())

	return true
}

// ResolvePath expands "~" and environment variables in a path.
func ResolvePath(path string) string {
	if !strings.Contains(path, "~") {
		return os.ExpandEnv(path)
	}

	if path == "~" {
		if usr, err := user.Current(); err == nil {
			path = usr.HomeDir
		}
	} else if strings.HasPrefix(path, "~/") {
		if usr, err := user.Current(); err == nil {
			path = filepath.Join(usr.HomeDir, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
