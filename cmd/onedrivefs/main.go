// Command onedrivefs is a small command line client for a OneDrive
// exposed through the virtual filesystem interface.
package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"github.com/rkhwaja/fs.onedrivefs/fs"
	"github.com/rkhwaja/fs.onedrivefs/onedrive"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "onedrivefs",
	Short:         "Access a OneDrive as a filesystem",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			fs.SetLogLevel(logrus.DebugLevel)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fs.Errorf(nil, "%v", err)
		os.Exit(1)
	}
}

func init() {
	defaultConfig := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultConfig = filepath.Join(home, ".onedrivefs.yaml")
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to the credentials file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// config is the on-disk credentials file
type config struct {
	ClientID     string    `yaml:"client_id"`
	ClientSecret string    `yaml:"client_secret"`
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	Expiry       time.Time `yaml:"expiry,omitempty"`
	DriveID      string    `yaml:"drive_id,omitempty"`
}

func loadConfig() (*config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read config %q", configPath)
	}
	cfg := &config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse config %q", configPath)
	}
	return cfg, nil
}

func (c *config) save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "couldn't marshal config")
	}
	return os.WriteFile(configPath, data, 0600)
}

// newFs opens the OneDrive described by the config file.  Refreshed
// tokens are written back so the next run doesn't have to refresh
// again.
func newFs() (fs.Fs, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		TokenType:    "Bearer",
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		Expiry:       cfg.Expiry,
	}
	return onedrive.New(onedrive.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Token:        token,
		DriveID:      cfg.DriveID,
		SaveToken: func(token *oauth2.Token) {
			cfg.AccessToken = token.AccessToken
			cfg.RefreshToken = token.RefreshToken
			cfg.Expiry = token.Expiry
			if err := cfg.save(); err != nil {
				fs.Errorf(nil, "couldn't save refreshed token: %v", err)
			}
		},
	})
}
