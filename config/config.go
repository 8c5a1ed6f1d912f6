package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/spf13/viper"
)

type Config struct {
	// Port is the port number to listen on. The default is 8080.
	Port int `validate:"required,port"`
	// Hostname is the hostname to listen on. The default is 0.0.0.0.
	Hostname string `validate:"required"`
	// Env selects the runtime environment. prod switches logging to JSON.
	Env string `validate:"required,oneof=dev prod"`
	// AllowedOrigins is a list of origins that are allowed to connect to the
	// server. The default is ["*"].
	AllowedOrigins []string
	WS             struct {
		// MaxMessageSize is the maximum inbound frame size in bytes.
		MaxMessageSize int64 `validate:"gt=0"`
		// SendBuffer is the number of outbound packets buffered per
		// connection before the hub drops it as a slow consumer.
		SendBuffer int `validate:"gt=0"`
		// MaxHistory caps the per-room chat history. Zero keeps the entire
		// history for the lifetime of the room.
		MaxHistory int `validate:"gte=0"`
	}
	RateLimit struct {
		// PerSecond is the per-IP rate of websocket upgrades allowed.
		PerSecond float64 `validate:"gt=0"`
		// Burst is the per-IP upgrade burst size.
		Burst int `validate:"gt=0"`
	}
	valid bool
}

// Load loads the configuration from an optional config.yaml and environment
// variables. Invalid values are not rejected here; they are caught in the
// validation step.
func Load() (*Config, error) {
	config := &Config{}
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("port", 8080)
	viper.SetDefault("hostname", "0.0.0.0")
	viper.SetDefault("env", "dev")
	viper.SetDefault("allowedorigins", "*")
	viper.SetDefault("ws.maxmessagesize", 4096)
	viper.SetDefault("ws.sendbuffer", 256)
	viper.SetDefault("ws.maxhistory", 0)
	viper.SetDefault("ratelimit.persecond", 5)
	viper.SetDefault("ratelimit.burst", 10)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(config,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(",")),
		),
	); err != nil {
		// defer the error to the validation step
		return config, nil
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.valid {
		return nil
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	c.valid = true
	return nil
}

func FormatValidationErrors(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return ""
	}
	trans, _ := uniTrans.GetTranslator("en")
	translated := errs.Translate(trans)

	var sb strings.Builder
	for _, v := range translated {
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}
