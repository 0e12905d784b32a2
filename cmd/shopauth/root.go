package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/shopauth/client"
)

// profile is the client-side CLI configuration. Values come from flags,
// then SHOPAUTH_* variables, then ~/.shopauth.yaml.
type profile struct {
	Server     string        `mapstructure:"server"`
	CookieFile string        `mapstructure:"cookie_file"`
	CacheFile  string        `mapstructure:"cache_file"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "shopauth",
		Short:         "Storefront auth API server and session client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readProfile(v, cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "profile file (default $HOME/.shopauth.yaml)")
	flags.String("server", "http://localhost:8000", "API base URL")
	flags.String("cookie-file", "", "where session cookies are kept (default $HOME/.shopauth/cookies.json)")
	flags.String("cache-file", "", "where the cached identity is kept (default $HOME/.shopauth/session.json)")
	flags.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindPFlag("cookie_file", flags.Lookup("cookie-file"))
	_ = v.BindPFlag("cache_file", flags.Lookup("cache-file"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newLoadtestCommand())
	cmd.AddCommand(newLoginCommand(v, false))
	cmd.AddCommand(newLoginCommand(v, true))
	cmd.AddCommand(newSignupCommand(v))
	cmd.AddCommand(newWhoamiCommand(v))
	cmd.AddCommand(newLogoutCommand(v))
	cmd.AddCommand(newWalletCommand(v))
	cmd.AddCommand(newReferralCommand(v))
	cmd.AddCommand(newUsersCommand(v))
	return cmd
}

func readProfile(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("SHOPAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(".shopauth")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func loadProfile(v *viper.Viper) (profile, error) {
	var p profile
	if err := v.Unmarshal(&p); err != nil {
		return profile{}, err
	}
	if p.CookieFile == "" || p.CacheFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return profile{}, errors.New("no home directory; set --cookie-file and --cache-file")
		}
		dir := filepath.Join(home, ".shopauth")
		if p.CookieFile == "" {
			p.CookieFile = filepath.Join(dir, "cookies.json")
		}
		if p.CacheFile == "" {
			p.CacheFile = filepath.Join(dir, "session.json")
		}
	}
	return p, nil
}
