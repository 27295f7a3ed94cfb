package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/sensorhub/internal/viewer"
	"github.com/shaiso/sensorhub/internal/wire"
)

// NewSensorCmd создаёт группу команд для работы с датчиками через сокет.
func NewSensorCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sensor",
		Aliases: []string{"sensors"},
		Short:   "Inspect and control sensors",
	}

	cmd.AddCommand(
		newSensorListCmd(clientFn, outputFn),
		newSensorToggleCmd(clientFn, outputFn, "enable"),
		newSensorToggleCmd(clientFn, outputFn, "disable"),
		newSensorRenameCmd(clientFn, outputFn),
	)

	return cmd
}

func newSensorListCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the current snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFn()
			if err != nil {
				return err
			}
			defer client.Close()
			out := outputFn()

			records, err := client.SensorList()
			if err != nil {
				return err
			}

			out.Print(recordHeaders, recordRows(records), records)
			return nil
		},
	}
}

func newSensorToggleCmd(clientFn func() (*Client, error), outputFn func() *Output, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <addr>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " polling of a sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := viewer.ParseAddress(args[0])
			if err != nil {
				return err
			}

			client, err := clientFn()
			if err != nil {
				return err
			}
			defer client.Close()
			out := outputFn()

			if _, err := client.Control(fmt.Sprintf("%s 0x%02X", verb, addr)); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Sensor 0x%02X %sd", addr, verb))
			return nil
		},
	}
}

func newSensorRenameCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <addr> <name>",
		Short: "Rename a sensor",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := viewer.ParseAddress(args[0])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")

			client, err := clientFn()
			if err != nil {
				return err
			}
			defer client.Close()
			out := outputFn()

			if _, err := client.Control(fmt.Sprintf("rename 0x%02X %s", addr, name)); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Sensor 0x%02X renamed to %q", addr, name))
			return nil
		},
	}
}

// NewStatusCmd создаёт команду запроса состояния сервиса.
func NewStatusCmd(clientFn func() (*Client, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFn()
			if err != nil {
				return err
			}
			defer client.Close()
			out := outputFn()

			status, err := client.Status()
			if err != nil {
				return err
			}

			out.Print([]string{"STATUS"}, [][]string{{status}}, map[string]string{"status": status})
			return nil
		},
	}
}

// --- Formatting ---

var recordHeaders = []string{"ADDR", "NAME", "ACTIVE", "TEMP °C", "HUMIDITY %"}

func recordRows(records []wire.SensorRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			fmt.Sprintf("0x%02X", r.Address),
			r.Name,
			strconv.FormatBool(r.Active),
			strconv.FormatFloat(float64(r.Temperature), 'f', 2, 32),
			strconv.FormatFloat(float64(r.Humidity), 'f', 2, 32),
		}
	}
	return rows
}
