package config

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"kiran"
	"kiran/internal/decoder"
	"kiran/internal/poller"
	"kiran/lib/translation"
)

var once sync.Once

var envKeys = []string{
	"telegram_bot_token",
	"api_endpoint",
	"debug",
	"log_format",
	"locales_dir",
	"metrics_port",
	"db_path",
	"poll_timeout",
	"poll_interval",
	"poll_limit",
	"retry_attempts",
	"retry_delay",
	"decode_policy",
	"sync_commands",
	"command_prefixes",
	"metrics_flush_interval",
}

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		for _, key := range envKeys {
			viper.BindEnv(key, strings.ToUpper(key))
		}
		// LANG is usually set by the shell, so KIRAN_LANG wins over it.
		// lang stays out of envKeys: BindEnv appends, it does not replace.
		viper.BindEnv("lang", "KIRAN_LANG", "LANG")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("log_format", "text")
		viper.SetDefault("lang", "en")
		viper.SetDefault("locales_dir", "locales")
		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("poll_timeout", poller.DefaultTimeout)
		viper.SetDefault("poll_interval", poller.DefaultInterval)
		viper.SetDefault("poll_limit", 0)
		viper.SetDefault("retry_attempts", poller.DefaultRetryAttempts)
		viper.SetDefault("retry_delay", poller.DefaultRetryDelay)
		viper.SetDefault("decode_policy", decoder.PolicySkip.String())
		viper.SetDefault("sync_commands", true)
		viper.SetDefault("metrics_flush_interval", 5*time.Minute)
	})
}

// ReadFile merges a config file (any format viper reads) over the
// environment defaults.
func ReadFile(path string) error {
	InitConfig()
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	return errors.Wrapf(viper.ReadInConfig(), "failed to read config %s", path)
}

// BindFlags lets command line flags override the other sources. Flag names
// use dashes, config keys use underscores.
func BindFlags(flags *pflag.FlagSet) error {
	InitConfig()
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if bindErr := viper.BindPFlag(key, f); bindErr != nil && err == nil {
			err = errors.Wrapf(bindErr, "failed to bind flag %s", f.Name)
		}
	})
	return err
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}

func GetStringSlice(key string) []string {
	InitConfig()
	return viper.GetStringSlice(key)
}

// Lang is the configured default language reduced to its two-letter code.
// Shell locales without one, such as "C.UTF-8", fall back to English.
func Lang() string {
	if lang, ok := translation.BaseLanguage(GetString("lang")); ok {
		return lang
	}
	return "en"
}

// Polling assembles the polling loop settings.
func Polling() poller.Config {
	return poller.Config{
		Timeout:       GetDuration("poll_timeout"),
		Interval:      GetDuration("poll_interval"),
		Limit:         GetInt("poll_limit"),
		RetryAttempts: GetInt("retry_attempts"),
		RetryDelay:    GetDuration("retry_delay"),
	}
}

// Bot assembles the bot settings.
func Bot() (kiran.Config, error) {
	policy, err := decoder.ParsePolicy(GetString("decode_policy"))
	if err != nil {
		return kiran.Config{}, err
	}
	return kiran.Config{
		Token:        GetString("telegram_bot_token"),
		Endpoint:     GetString("api_endpoint"),
		Debug:        GetBool("debug"),
		Polling:      Polling(),
		DecodePolicy: policy,
		Prefixes:     GetStringSlice("command_prefixes"),
		SyncCommands: GetBool("sync_commands"),
	}, nil
}
