package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taknb2nch/slacksink"
)

func runSend(cmd *cobra.Command, args []string) error {
	level, err := slacksink.ParseLevel(viper.GetString("level"))
	if err != nil {
		return err
	}

	props, err := parseProps(viper.GetStringSlice("prop"))
	if err != nil {
		return err
	}

	messages, err := collectMessages(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()

	opts := []slacksink.Option{
		slacksink.WithName("slacknotify"),
		slacksink.WithBatchSizeLimit(viper.GetInt("batch-size")),
		slacksink.WithChannel(viper.GetString("channel")),
		slacksink.WithUserName(viper.GetString("username")),
		slacksink.WithIcon(viper.GetString("icon")),
		slacksink.WithUnboundedQueue(),
		slacksink.WithSelfLog(cmd.ErrOrStderr()),
		slacksink.WithMetricsRegisterer(reg),
	}

	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		opts = append(opts, slacksink.WithShutdownTimeout(timeout))
	}

	if viper.GetBool("no-color") {
		opts = append(opts, slacksink.WithSelfLogColor(false))
	}

	sink, err := slacksink.New(viper.GetString("webhook-url"), opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateSink, err)
	}

	for _, msg := range messages {
		sink.Emit(slacksink.NewEvent(level, msg, props...))
	}

	if err := sink.Close(); err != nil {
		return err
	}

	if failed := failedMessages(reg); failed > 0 {
		return fmt.Errorf("%w: %d of %d failed", ErrNotDelivered, failed, len(messages))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d event(s)\n", len(messages))

	return nil
}

// parseProps turns Name=Value pairs into alternating key/value arguments.
func parseProps(pairs []string) ([]interface{}, error) {
	kvs := make([]interface{}, 0, len(pairs)*2)

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)

		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q, expected Name=Value", ErrInvalidProperty, pair)
		}

		kvs = append(kvs, name, value)
	}

	return kvs, nil
}

// collectMessages returns the joined arguments, or the non-empty lines of r when there are none.
func collectMessages(args []string, r io.Reader) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}

	var messages []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			messages = append(messages, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadStdin, err)
	}

	if len(messages) == 0 {
		return nil, ErrNoMessage
	}

	return messages, nil
}

// failedMessages reads the failed delivery count from the sink's metrics.
func failedMessages(g prometheus.Gatherer) int {
	families, err := g.Gather()
	if err != nil {
		return 0
	}

	var failed float64

	for _, mf := range families {
		if mf.GetName() != "slacksink_messages_total" {
			continue
		}

		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == "failed" {
					failed += m.GetCounter().GetValue()
				}
			}
		}
	}

	return int(failed)
}
