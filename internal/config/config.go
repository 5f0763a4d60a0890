package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig `mapstructure:"server"`
	Schema    SchemaConfig `mapstructure:"schema"`
	JWTSecret string       `mapstructure:"jwt_secret"`
	Admin     AdminConfig  `mapstructure:"admin"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type SchemaConfig struct {
	Path     string `mapstructure:"path"`      // directory holding entity definition JSON files
	SeedPath string `mapstructure:"seed_path"` // optional seed data file, loaded at startup
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("schema.path", "./schema")
	viper.SetDefault("schema.seed_path", "")
	viper.SetDefault("jwt_secret", "changeme-secret")
	viper.SetDefault("admin.email", "admin@local")
	viper.SetDefault("admin.password", "changeme-admin")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
