// Command slacknotify posts log events to a Slack incoming webhook.
//
//	echo "disk almost full" | slacknotify --level warning --prop Host=db1
//	slacknotify --channel "#deploys" "Deploy {Version} finished" --prop Version=1.4.2
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/taknb2nch/slacksink"
)

var rootCmd = &cobra.Command{
	Use:   "slacknotify [message...]",
	Short: "Post log events to a Slack incoming webhook",
	Long: `Post log events to a Slack incoming webhook.

The message is taken from the arguments. Without arguments every non-empty
line read from standard input becomes one event.

Flags can also be set in a config file (--config) or through SLACK_*
environment variables, e.g. SLACK_WEBHOOK_URL or SLACK_CHANNEL.`,
	SilenceUsage: true,
	RunE:         runSend,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, json or toml)")

	f := rootCmd.Flags()
	f.String("webhook-url", "", "Slack incoming webhook URL")
	f.StringP("level", "l", "information", "Event level ("+levelNames()+")")
	f.StringArrayP("prop", "p", nil, "Event property as Name=Value (can be repeated)")
	f.String("channel", "", "Channel to post in")
	f.String("username", "", "User name shown as the sender")
	f.String("icon", "", "Icon emoji, e.g. :ghost:")
	f.Int("batch-size", 50, "Events delivered per batch")
	f.Duration("timeout", 0, "Time allowed for delivering all events (default 30s)")
	f.Bool("no-color", false, "Disable colored diagnostics")

	cobra.CheckErr(bindFlags(f, "webhook-url", "level", "prop", "channel", "username", "icon", "batch-size", "timeout", "no-color"))
}

// bindFlags binds each named flag to the viper key of the same name.
func bindFlags(f *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if err := viper.BindPFlag(name, f.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

func levelNames() string {
	var names []string
	for _, l := range slacksink.Levels() {
		names = append(names, strings.ToLower(l.String()))
	}

	return strings.Join(names, ", ")
}

func initConfig() {
	viper.SetEnvPrefix("SLACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
