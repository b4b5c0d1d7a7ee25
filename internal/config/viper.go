package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// viperKeys defines the mapping between config keys and their Viper
// counterparts.
const (
	keyJiraHost       = "jira.host"
	keyCommentBlock   = "settings.comment_block"
	keyRequestTimeout = "settings.request_timeout"
	keyNotify         = "settings.notify"
	keyPostCmd        = "settings.cmd"
	keyHideTiming     = "menubar.hide_timing"
	keyHideKey        = "menubar.hide_key"
)

// WithViperConfig returns an Option that loads configuration from Viper,
// writing a default config file on first run.
func WithViperConfig(configPath string) Option {
	return func(c *Config) error {
		v := viper.New()

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		setViperDefaults(v)

		err := v.ReadInConfig()
		if err == nil {
			return loadViperConfig(v, c)
		}

		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config file failed: %w", err)
		}

		if err := v.WriteConfig(); err != nil {
			return fmt.Errorf("writing default config failed: %w", err)
		}

		return loadViperConfig(v, c)
	}
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault(keyJiraHost, "")
	v.SetDefault(keyCommentBlock, true)
	v.SetDefault(keyRequestTimeout, "20s")
	v.SetDefault(keyNotify, true)
	v.SetDefault(keyPostCmd, "")
	v.SetDefault(keyHideTiming, false)
	v.SetDefault(keyHideKey, false)
}

// loadViperConfig loads configuration from Viper into the Config struct.
func loadViperConfig(v *viper.Viper, c *Config) error {
	c.Jira.Host = v.GetString(keyJiraHost)
	c.Settings.CommentBlock = v.GetBool(keyCommentBlock)
	c.Settings.RequestTimeout = v.GetDuration(keyRequestTimeout)
	c.Settings.Notify = v.GetBool(keyNotify)
	c.Settings.PostCmd = v.GetString(keyPostCmd)
	c.Menubar.HideTiming = v.GetBool(keyHideTiming)
	c.Menubar.HideKey = v.GetBool(keyHideKey)

	if c.Settings.RequestTimeout <= 0 {
		return errInvalidTimeout
	}

	return nil
}
