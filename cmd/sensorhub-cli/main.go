// SensorHub CLI — инструмент командной строки для просмотра телеметрии
// и управления датчиками.
//
// Использование:
//
//	sensorhub [--socket PATH] [--network unix|tcp] [--json] <command> [flags]
//
// Команды:
//
//	sensor    Снапшот и управление датчиками (через сокет)
//	status    Состояние сервиса
//	watch     Поток телеметрии
//	history   Сохранённые показания (PostgreSQL)
//	mirror    Подписка на зеркало снапшотов (RabbitMQ)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/sensorhub/internal/cli"
	"github.com/shaiso/sensorhub/internal/config"
	"github.com/shaiso/sensorhub/internal/mq"
	"github.com/shaiso/sensorhub/internal/repo"
	"github.com/shaiso/sensorhub/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		network    string
		socketPath string
		dbURL      string
		amqpURL    string
		timeout    time.Duration
		jsonOutput bool
	)

	rootCmd := &cobra.Command{
		Use:           "sensorhub",
		Short:         "SensorHub CLI — sensor telemetry viewer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&network, "network", envOr("SENSORHUB_SOCKET_NETWORK", config.DefaultSocketNetwork), "Socket network (unix or tcp)")
	flags.StringVar(&socketPath, "socket", envOr("SENSORHUB_SOCKET_PATH", config.DefaultSocketPath), "Service socket address")
	flags.StringVar(&dbURL, "db-url", envOr("DB_URL", config.DefaultDBURL), "PostgreSQL connection string")
	flags.StringVar(&amqpURL, "amqp-url", envOr("RABBITMQ_URL", mq.DefaultURL()), "RabbitMQ URL")
	flags.DurationVar(&timeout, "timeout", 2*time.Second, "Request timeout")
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() (*cli.Client, error) { return cli.Dial(network, socketPath, timeout) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	historyFn := func(ctx context.Context) (cli.History, func(), error) {
		pool, err := repo.NewPool(ctx, dbURL)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewReadingRepo(pool), pool.Close, nil
	}

	connFn := func() (*mq.Connection, error) {
		return mq.NewConnection(amqpURL, telemetry.NewLogger(os.Stderr, "text", telemetry.LogLevel()))
	}

	rootCmd.AddCommand(
		cli.NewSensorCmd(clientFn, outputFn),
		cli.NewStatusCmd(clientFn, outputFn),
		cli.NewWatchCmd(clientFn, outputFn),
		cli.NewHistoryCmd(historyFn, outputFn),
		cli.NewMirrorCmd(connFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
