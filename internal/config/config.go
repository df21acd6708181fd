package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type AppConfig struct {
	ServerAddr  string `mapstructure:"SERVER_ADDR" validate:"min=2"`
	GinMode     string `mapstructure:"GIN_MODE" validate:"min=4"`
	DataDir     string `mapstructure:"DATA_DIR" validate:"min=1"`
	StorageMode string `mapstructure:"STORAGE_MODE" validate:"oneof=bbolt file"`
	// PersistKey is the fixed durable slot identifier.
	PersistKey string `mapstructure:"PERSIST_KEY" validate:"min=1"`

	CommentsURL  string        `mapstructure:"COMMENTS_URL" validate:"url"`
	UserAgent    string        `mapstructure:"USER_AGENT" validate:"min=1"`
	FetchTimeout time.Duration `mapstructure:"FETCH_TIMEOUT" validate:"nonzero_duration"`

	PersistDebounce time.Duration `mapstructure:"PERSIST_DEBOUNCE" validate:"nonzero_duration"`
	FlushTimeout    time.Duration `mapstructure:"FLUSH_TIMEOUT" validate:"nonzero_duration"`

	JournalEnabled bool `mapstructure:"JOURNAL_ENABLED"`
}

func (c *AppConfig) Validate() error {
	v := validator.New()

	_ = v.RegisterValidation("nonzero_duration", func(fl validator.FieldLevel) bool {
		if d, ok := fl.Field().Interface().(time.Duration); ok {
			return d > 0
		} else {
			return false
		}
	})
	if err := v.Struct(c); err != nil {
		return err
	}
	return nil
}

func LoadAppConfig(name, ext string, paths ...string) (*AppConfig, error) {
	for _, path := range paths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName(name)
	viper.SetConfigType(ext)
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_ADDR", ":8082")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("DATA_DIR", "./data/server")
	viper.SetDefault("STORAGE_MODE", "bbolt")
	viper.SetDefault("PERSIST_KEY", "app-state")
	viper.SetDefault("COMMENTS_URL", "https://jsonplaceholder.typicode.com/comments")
	viper.SetDefault("USER_AGENT", "Mozilla/5.0 (compatible; StatePlayground/1.0; +https://github.com/common)")
	viper.SetDefault("FETCH_TIMEOUT", 30*time.Second)
	viper.SetDefault("PERSIST_DEBOUNCE", 100*time.Millisecond)
	viper.SetDefault("FLUSH_TIMEOUT", 10*time.Second)
	viper.SetDefault("JOURNAL_ENABLED", true)

	err := viper.ReadInConfig()

	if err != nil {
		return nil, err
	}
	cfg := &AppConfig{}
	err = viper.Unmarshal(cfg)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
