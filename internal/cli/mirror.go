package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/sensorhub/internal/mq"
)

// NewMirrorCmd создаёт команду подписки на зеркало снапшотов в RabbitMQ.
func NewMirrorCmd(connFn func() (*mq.Connection, error), outputFn func() *Output) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Tail snapshots published to RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connFn()
			if err != nil {
				return err
			}
			defer conn.Close()
			out := outputFn()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var received int
			consumer := mq.NewConsumer(conn, slog.Default(), mq.ConsumerConfig{
				// Эксклюзивная очередь пропадает при разрыве, объявляем заново
				Declare:  mq.DeclareTailQueue,
				Prefetch: 10,
				Handler: func(_ context.Context, snap mq.SnapshotPayload) error {
					printSnapshot(out, snap)

					received++
					if count > 0 && received >= count {
						cancel()
					}
					return nil
				},
			})

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after N snapshots (0 = until interrupted)")

	return cmd
}

func printSnapshot(out *Output, p mq.SnapshotPayload) {
	if out.jsonMode {
		out.JSON(p)
		return
	}

	out.Line(fmt.Sprintf("--- tick %d at %s", p.Tick, p.Timestamp.Local().Format(time.TimeOnly)))
	rows := make([][]string, len(p.Readings))
	for i, r := range p.Readings {
		rows[i] = []string{
			fmt.Sprintf("0x%02X", r.SensorAddress),
			strconv.FormatFloat(float64(r.Temperature), 'f', 2, 32),
			strconv.FormatFloat(float64(r.Humidity), 'f', 2, 32),
			strconv.FormatBool(r.Stale),
		}
	}
	out.Table([]string{"ADDR", "TEMP °C", "HUMIDITY %", "STALE"}, rows)
}
