package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

type Config struct {
	Port           string
	IdleTimeout    time.Duration
	AllowedOrigins []string
	LogLevel       string

	Websocket   WebsocketConfig
	Persistence PersistenceConfig

	AwsRegion            string
	MatchStatesTableName string
	DatabaseUrl          string
	EcsClusterName       string
	EcsTaskArn           string
	EcsMetadataUri       string
}

type WebsocketConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

type PersistenceConfig struct {
	Backend      string
	SaveAttempts int
	MaxBackoff   time.Duration
	QueueSize    int
	LoadTimeout  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.IdleTimeout", "5m")
	v.SetDefault("Server.AllowedOrigins", []string{"*"})
	v.SetDefault("Log.Level", "info")

	v.SetDefault("Websocket.WriteTimeout", "10s")
	v.SetDefault("Websocket.ReadTimeout", "60s")
	v.SetDefault("Websocket.PingInterval", "30s")
	v.SetDefault("Websocket.MaxMessageSize", 4096)
	v.SetDefault("Websocket.SendBufferSize", 32)

	v.SetDefault("Persistence.Backend", BackendMemory)
	v.SetDefault("Persistence.SaveAttempts", 3)
	v.SetDefault("Persistence.MaxBackoff", "2s")
	v.SetDefault("Persistence.QueueSize", 64)
	v.SetDefault("Persistence.LoadTimeout", "5s")

	v.SetDefault("AWS_REGION", "ap-southeast-2")
	v.SetDefault("MATCH_STATES_TABLE_NAME", "MatchStates")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ECS_CLUSTER_NAME", "")
	v.SetDefault("ECS_TASK_ARN", "")
	v.SetDefault("ECS_CONTAINER_METADATA_URI_V4", "")
}

// DefaultConfig returns the configuration used when no file or
// environment override is present.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	return configFrom(v)
}

// NewConfig reads ./configs/server/config.yaml (optional), the env files
// under ./configs/aws (optional), and finally the process environment.
func NewConfig() Config {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs/server")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %s", err))
		}
	}

	envFiles := []string{
		"./configs/aws/base.env",
		"./configs/aws/storage.env",
	}
	if err := loadEnvFiles(v, envFiles); err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return configFrom(v)
}

func configFrom(v *viper.Viper) Config {
	return Config{
		Port:           v.GetString("Server.Port"),
		IdleTimeout:    v.GetDuration("Server.IdleTimeout"),
		AllowedOrigins: v.GetStringSlice("Server.AllowedOrigins"),
		LogLevel:       v.GetString("Log.Level"),
		Websocket: WebsocketConfig{
			WriteTimeout:   v.GetDuration("Websocket.WriteTimeout"),
			ReadTimeout:    v.GetDuration("Websocket.ReadTimeout"),
			PingInterval:   v.GetDuration("Websocket.PingInterval"),
			MaxMessageSize: v.GetInt64("Websocket.MaxMessageSize"),
			SendBufferSize: v.GetInt("Websocket.SendBufferSize"),
		},
		Persistence: PersistenceConfig{
			Backend:      v.GetString("Persistence.Backend"),
			SaveAttempts: v.GetInt("Persistence.SaveAttempts"),
			MaxBackoff:   v.GetDuration("Persistence.MaxBackoff"),
			QueueSize:    v.GetInt("Persistence.QueueSize"),
			LoadTimeout:  v.GetDuration("Persistence.LoadTimeout"),
		},
		AwsRegion:            v.GetString("AWS_REGION"),
		MatchStatesTableName: v.GetString("MATCH_STATES_TABLE_NAME"),
		DatabaseUrl:          v.GetString("DATABASE_URL"),
		EcsClusterName:       v.GetString("ECS_CLUSTER_NAME"),
		EcsTaskArn:           v.GetString("ECS_TASK_ARN"),
		EcsMetadataUri:       v.GetString("ECS_CONTAINER_METADATA_URI_V4"),
	}
}

func loadEnvFiles(v *viper.Viper, filenames []string) error {
	for _, file := range filenames {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		v.SetConfigFile(file)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			return err
		}
	}
	return nil
}
