package cli

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/pipeline"
)

// RunAction is the corresponding Action for 'run'.
func RunAction(c *cli.Context) error {
	dirs, err := exampleDirs(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.New(c.Context, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "could not start the pipeline")
	}

	var (
		failed    []string
		latencies []time.Duration
	)
	for _, dir := range dirs {
		latency, n, err := runExample(c.Context, p, dir, c.Duration(timeoutFlag), c.Bool(visualizeFlag), c.Bool(debugFlag), logger)
		if err != nil {
			logger.Errorw("example failed", "example", dir, "error", err)
			warningf(c.App.ErrWriter, "%s: %v", dir, err)
			failed = append(failed, dir)
			continue
		}
		printf(c.App.Writer, "%s: %d poses in %s", dir, n, latency)
		latencies = append(latencies, latency)
	}

	summary, err := summarizeLatencies(latencies)
	if err != nil {
		return err
	}
	if summary.Count > 0 {
		printf(c.App.Writer, "%s", summary)
	}
	if len(failed) > 0 {
		return errors.Errorf("%d of %d examples failed: %s", len(failed), len(dirs), strings.Join(failed, ", "))
	}
	return nil
}

// runExample estimates one example under its own request id and returns the estimation latency
// and the number of poses.
func runExample(
	ctx context.Context,
	p *pipeline.Pipeline,
	dir string,
	timeout time.Duration,
	visualize, debug bool,
	logger logging.Logger,
) (time.Duration, int, error) {
	requestID := uuid.NewString()
	if debug {
		ctx = logging.EnableDebugMode(ctx, requestID)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	estimates, err := p.EstimateExample(ctx, dir)
	if err != nil {
		return 0, 0, err
	}
	latency := time.Since(start)
	logger.Infow("estimated poses",
		"request_id", requestID,
		"example", dir,
		"objects", estimates.Len(),
		"latency", latency.String(),
	)
	if visualize {
		if err := p.Visualize(ctx, dir); err != nil {
			return 0, 0, err
		}
	}
	return latency, estimates.Len(), nil
}

// VisualizeAction is the corresponding Action for 'visualize'.
func VisualizeAction(c *cli.Context) error {
	dirs, err := exampleDirs(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.New(c.Context, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "could not start the pipeline")
	}
	var failed int
	for _, dir := range dirs {
		if err := p.Visualize(c.Context, dir); err != nil {
			warningf(c.App.ErrWriter, "%s: %v", dir, err)
			failed++
			continue
		}
		printf(c.App.Writer, "%s: wrote figures", dir)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d examples failed", failed, len(dirs))
	}
	return nil
}
