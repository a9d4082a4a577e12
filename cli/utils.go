package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/poseflow/config"
	"go.viam.com/poseflow/logging"
)

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "Warning: "+format+"\n", a...)
}

// newLogger returns a logger writing to the app's error stream.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("poseflow")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(debugFlag) {
		logger.SetLevel(logging.INFO)
	}
	return logger
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	path := c.String(configFlag)
	if path == "" {
		return nil, errors.Errorf("no config file given, set --%s", configFlag)
	}
	return config.Read(path, logger)
}

func exampleDirs(c *cli.Context) ([]string, error) {
	if c.NArg() == 0 {
		return nil, errors.New("at least one EXAMPLE_DIR is required")
	}
	return c.Args().Slice(), nil
}

type latencySummary struct {
	Count  int
	Mean   time.Duration
	Median time.Duration
	P95    time.Duration
}

func (s latencySummary) String() string {
	return fmt.Sprintf("%d requests: mean %s, median %s, p95 %s", s.Count, s.Mean, s.Median, s.P95)
}

func summarizeLatencies(latencies []time.Duration) (latencySummary, error) {
	if len(latencies) == 0 {
		return latencySummary{}, nil
	}
	data := stats.Float64Data(lo.Map(latencies, func(d time.Duration, _ int) float64 { return float64(d) }))
	mean, err := stats.Mean(data)
	if err != nil {
		return latencySummary{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return latencySummary{}, err
	}
	p95, err := stats.Percentile(data, 95)
	if err != nil {
		return latencySummary{}, err
	}
	return latencySummary{
		Count:  len(latencies),
		Mean:   time.Duration(mean),
		Median: time.Duration(median),
		P95:    time.Duration(p95),
	}, nil
}
