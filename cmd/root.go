package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tanq16/hreq/internal/output"
	"github.com/tanq16/hreq/internal/transport"
	"github.com/tanq16/hreq/internal/utils"
)

const envPrefix = "HREQ"

var (
	cfgFile          string
	headers          []string
	globalHTTPConfig transport.Config
)

var HreqVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "hreq",
	Short:   "hreq sends HTTP requests and downloads files that survive interruptions",
	Version: HreqVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.InitLogger(viper.GetBool("debug"), viper.GetString("log-file"))
		globalHTTPConfig = httpConfigFromFlags(cmd)
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.hreq.yaml)")
	flags.DurationP("timeout", "t", 3*time.Minute, "Request timeout (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringP("user-agent", "a", transport.DefaultUserAgent, "User agent (\"randomize\" picks a browser agent)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.String("bearer-token", "", "Bearer token sent as Authorization header")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-file", "", "Also write JSON logs to this rotated file")

	if err := viper.BindPFlags(flags); err != nil {
		log.Fatal().Err(err).Msg("cannot bind flags")
	}

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newPostCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}

// initConfig layers $HOME/.hreq.yaml and HREQ_* variables under the flags.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".hreq")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("op", "cmd/root").Msgf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// httpConfigFromFlags resolves the shared transport settings for cmd. Headers given
// on the command line replace any from the config file.
func httpConfigFromFlags(cmd *cobra.Command) transport.Config {
	userAgent := viper.GetString("user-agent")
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	proxyURL := viper.GetString("proxy")
	proxyUsername := viper.GetString("proxy-username")
	proxyPassword := viper.GetString("proxy-password")
	// credentials embedded in the proxy URL are moved to the explicit fields
	parsedProxy, err := u.Parse(proxyURL)
	if proxyURL != "" && err == nil && parsedProxy.User != nil && proxyUsername == "" {
		proxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			proxyPassword = password
		}
		parsedProxy.User = nil
		proxyURL = parsedProxy.String()
	}
	headerArgs := headers
	if !cmd.Flags().Changed("header") {
		headerArgs = viper.GetStringSlice("header")
	}
	return transport.Config{
		Timeout:       viper.GetDuration("timeout"),
		KATimeout:     viper.GetDuration("keep-alive-timeout"),
		ProxyURL:      proxyURL,
		ProxyUsername: proxyUsername,
		ProxyPassword: proxyPassword,
		UserAgent:     userAgent,
		Headers:       utils.ParseHeaderArgs(headerArgs),
		BearerToken:   viper.GetString("bearer-token"),
	}
}
