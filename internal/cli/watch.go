package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/sensorhub/internal/wire"
)

// NewWatchCmd создаёт команду потокового просмотра телеметрии.
//
// Команда подключается как обычный зритель и печатает каждый
// полученный SensorData до Ctrl+C или до --count снапшотов.
func NewWatchCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFn()
			if err != nil {
				return err
			}
			defer client.Close()
			out := outputFn()

			var received int
			return client.Watch(cmd.Context(), func(records []wire.SensorRecord) error {
				received++
				if out.jsonMode {
					out.JSON(struct {
						ReceivedAt time.Time           `json:"received_at"`
						Records    []wire.SensorRecord `json:"records"`
					}{time.Now().UTC(), records})
				} else {
					out.Line("--- " + time.Now().Format(time.TimeOnly))
					out.Table(recordHeaders, recordRows(records))
				}

				if count > 0 && received >= count {
					return errStopWatch
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after N snapshots (0 = until interrupted)")

	return cmd
}
