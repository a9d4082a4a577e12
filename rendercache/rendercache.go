// Package rendercache loads precomputed multi-view appearance and normal renders of every catalog
// object into stacked tensors.
package rendercache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/rimage"
)

// Image kinds of a render pair.
const (
	AppearanceKind = "rgb"
	NormalKind     = "normal"
)

// RenderCacheError describes a malformed render directory.
type RenderCacheError struct {
	Label  string
	Path   string
	Reason string
}

func (e *RenderCacheError) Error() string {
	return fmt.Sprintf("render cache error for label %q at %q: %s", e.Label, e.Path, e.Reason)
}

// RenderCache maps an object label to a [views, 2*C, H, W] float32 tensor.
type RenderCache struct {
	renders map[string]*tensor.Dense
	labels  []string
}

// NewRenderCache wraps already built tensors. Every tensor must be 4 dimensional with an even
// channel count.
func NewRenderCache(renders map[string]*tensor.Dense) (*RenderCache, error) {
	for label, t := range renders {
		if err := ml.CheckShape(label, t, -1, -1, -1, -1); err != nil {
			return nil, &RenderCacheError{Label: label, Reason: err.Error()}
		}
		if t.Shape()[1]%2 != 0 {
			return nil, &RenderCacheError{Label: label, Reason: fmt.Sprintf("channel dimension of %v is not even", t.Shape())}
		}
	}
	labels := lo.Keys(renders)
	sort.Strings(labels)
	return &RenderCache{renders: renders, labels: labels}, nil
}

// Get returns the stacked views of a label.
func (rc *RenderCache) Get(label string) (*tensor.Dense, bool) {
	t, ok := rc.renders[label]
	return t, ok
}

// Labels returns the sorted labels.
func (rc *RenderCache) Labels() []string {
	return append([]string(nil), rc.labels...)
}

// Views returns the number of views of a label, or 0 if the label is unknown.
func (rc *RenderCache) Views(label string) int {
	t, ok := rc.renders[label]
	if !ok {
		return 0
	}
	return t.Shape()[0]
}

// ViewBytes returns the size of one view of a label.
func (rc *RenderCache) ViewBytes(label string) int64 {
	views := rc.Views(label)
	if views == 0 {
		return 0
	}
	return ml.TensorBytes(rc.renders[label]) / int64(views)
}

// Bytes returns the size of every tensor in the cache.
func (rc *RenderCache) Bytes() int64 {
	return ml.Tensors(rc.renders).Bytes()
}

// Load reads root/{label}/{rgb,normal}_{NNN}.png for every label directory under root. Files that
// are not directories are skipped. Labels load in parallel; every malformed label is reported.
func Load(ctx context.Context, root string, logger logging.Logger) (*RenderCache, error) {
	ctx, span := trace.StartSpan(ctx, "rendercache::Load")
	defer span.End()

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &RenderCacheError{Path: root, Reason: errors.Wrap(err, "cannot list render directory").Error()}
	}
	var labels []string
	for _, entry := range entries {
		if entry.IsDir() {
			labels = append(labels, entry.Name())
		}
	}

	results := make([]*tensor.Dense, len(labels))
	errs := make([]error, len(labels))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, label := range labels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = loadLabel(filepath.Join(root, label), label)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	renders := make(map[string]*tensor.Dense, len(labels))
	for i, label := range labels {
		renders[label] = results[i]
	}
	rc, err := NewRenderCache(renders)
	if err != nil {
		return nil, err
	}
	logger.Infow("loaded render cache", "path", root, "labels", len(labels), "bytes", rc.Bytes())
	return rc, nil
}

func loadLabel(dir, label string) (*tensor.Dense, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &RenderCacheError{Label: label, Path: dir, Reason: err.Error()}
	}
	var pngs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			pngs = append(pngs, entry.Name())
		}
	}
	sort.Strings(pngs)
	if len(pngs) == 0 {
		return nil, &RenderCacheError{Label: label, Path: dir, Reason: "no png views"}
	}
	if len(pngs)%2 != 0 {
		return nil, &RenderCacheError{Label: label, Path: dir, Reason: fmt.Sprintf("odd number of png files (%d)", len(pngs))}
	}
	present := lo.SliceToMap(pngs, func(name string) (string, bool) { return name, true })

	n := len(pngs) / 2
	views := make([]*tensor.Dense, 0, n)
	var viewShape tensor.Shape
	for i := 0; i < n; i++ {
		pair := make([]*tensor.Dense, 0, 2)
		for _, kind := range []string{AppearanceKind, NormalKind} {
			name := fmt.Sprintf("%s_%03d.png", kind, i)
			path := filepath.Join(dir, name)
			if !present[name] {
				return nil, &RenderCacheError{Label: label, Path: path, Reason: "missing counterpart of render pair"}
			}
			img, err := rimage.ReadImageFromFile(path)
			if err != nil {
				return nil, &RenderCacheError{Label: label, Path: path, Reason: err.Error()}
			}
			t := rimage.ImageToTensor(img)
			if viewShape == nil {
				viewShape = t.Shape().Clone()
			} else if !viewShape.Eq(t.Shape()) {
				return nil, &RenderCacheError{
					Label:  label,
					Path:   path,
					Reason: fmt.Sprintf("image shape %v differs from first view shape %v", t.Shape(), viewShape),
				}
			}
			pair = append(pair, t)
		}
		view, err := pair[0].Concat(0, pair[1])
		if err != nil {
			return nil, &RenderCacheError{Label: label, Path: dir, Reason: errors.Wrap(err, "cannot concatenate render pair").Error()}
		}
		views = append(views, view)
	}
	return stackViews(views)
}

// stackViews stacks [C, H, W] views into [views, C, H, W].
func stackViews(views []*tensor.Dense) (*tensor.Dense, error) {
	if len(views) == 1 {
		shape := views[0].Shape()
		out, ok := views[0].Clone().(*tensor.Dense)
		if !ok {
			return nil, errors.New("cannot clone view tensor")
		}
		if err := out.Reshape(1, shape[0], shape[1], shape[2]); err != nil {
			return nil, err
		}
		return out, nil
	}
	return views[0].Stack(0, views[1:]...)
}
