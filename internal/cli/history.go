package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/sensorhub/internal/domain"
	"github.com/shaiso/sensorhub/internal/repo"
	"github.com/shaiso/sensorhub/internal/viewer"
)

// History — чтение временного ряда из долговременного хранилища.
type History interface {
	Recent(ctx context.Context, addr uint8, limit int) ([]domain.Reading, error)
	Stats(ctx context.Context, addr uint8, since time.Time) (*repo.Stats, error)
}

// HistoryFunc открывает хранилище и возвращает функцию его закрытия.
type HistoryFunc func(ctx context.Context) (History, func(), error)

// NewHistoryCmd создаёт группу команд для чтения сохранённых показаний.
func NewHistoryCmd(historyFn HistoryFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query persisted readings",
	}

	cmd.AddCommand(
		newHistoryRecentCmd(historyFn, outputFn),
		newHistoryStatsCmd(historyFn, outputFn),
	)

	return cmd
}

func newHistoryRecentCmd(historyFn HistoryFunc, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent <addr>",
		Short: "Show the most recent readings of a sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := viewer.ParseAddress(args[0])
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			history, closeFn, err := historyFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			out := outputFn()

			readings, err := history.Recent(cmd.Context(), addr, limit)
			if err != nil {
				return err
			}

			headers := []string{"RECORDED AT", "TEMP °C", "HUMIDITY %"}
			rows := make([][]string, len(readings))
			for i, r := range readings {
				rows[i] = []string{
					r.Timestamp.Local().Format(time.DateTime),
					strconv.FormatFloat(float64(r.Temperature), 'f', 2, 32),
					strconv.FormatFloat(float64(r.Humidity), 'f', 2, 32),
				}
			}

			out.Print(headers, rows, readings)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Number of readings to show")

	return cmd
}

func newHistoryStatsCmd(historyFn HistoryFunc, outputFn func() *Output) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "stats <addr>",
		Short: "Show aggregate statistics of a sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := viewer.ParseAddress(args[0])
			if err != nil {
				return err
			}

			history, closeFn, err := historyFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			out := outputFn()

			stats, err := history.Stats(cmd.Context(), addr, time.Now().Add(-since))
			if errors.Is(err, repo.ErrNotFound) {
				out.Success(fmt.Sprintf("No readings for 0x%02X in the last %s", addr, since))
				return nil
			}
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ADDR", "COUNT", "AVG TEMP", "MIN TEMP", "MAX TEMP", "AVG HUMIDITY"},
				[][]string{{
					fmt.Sprintf("0x%02X", stats.SensorAddress),
					strconv.FormatInt(stats.Count, 10),
					strconv.FormatFloat(stats.AvgTemperature, 'f', 2, 64),
					strconv.FormatFloat(float64(stats.MinTemperature), 'f', 2, 32),
					strconv.FormatFloat(float64(stats.MaxTemperature), 'f', 2, 32),
					strconv.FormatFloat(stats.AvgHumidity, 'f', 2, 64),
				}},
				stats,
			)
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", time.Hour, "Aggregation window")

	return cmd
}
