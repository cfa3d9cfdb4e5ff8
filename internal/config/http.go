package config

import "github.com/spf13/viper"

// LoadEnv points viper at .env, allows real environment variables to
// override it, and binds every key the ledger API and worker read.
func LoadEnv() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("provider.iso20022_endpoint", "PROVIDER_ISO20022_ENDPOINT")
	viper.BindEnv("provider.originator_bic", "PROVIDER_ORIGINATOR_BIC")
	viper.BindEnv("http.port", "PORT")

	viper.ReadInConfig()
}
