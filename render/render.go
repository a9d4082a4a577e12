// Package render defines the scene renderer consumed by the visualization compositor.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/poseflow/rimage"
	"go.viam.com/poseflow/scene"
)

// Light types.
const (
	AmbientLight     = "ambient"
	DirectionalLight = "directional"
)

// LightData describes one light of a scene.
type LightData struct {
	Type  string
	Color color.Color
}

// Validate checks that the light type is known.
func (l LightData) Validate() error {
	switch l.Type {
	case AmbientLight, DirectionalLight:
	default:
		return errors.Errorf("unknown light type %q", l.Type)
	}
	if l.Color == nil {
		return errors.Errorf("%s light has no color", l.Type)
	}
	return nil
}

// RenderOptions select the optional outputs of a render.
type RenderOptions struct {
	RenderDepth   bool
	RenderMask    bool
	RenderNormals bool
}

// Rendering is the output for one camera.
type Rendering struct {
	// RGB is transparent where no object covers the pixel.
	RGB     *image.NRGBA
	Depth   *rimage.DepthMap
	Mask    *mat.Dense
	Normals *image.NRGBA
}

// RenderFailure is returned when a scene cannot be rendered.
type RenderFailure struct {
	Label  string
	Path   string
	Reason string
}

func (e *RenderFailure) Error() string {
	msg := "render failed"
	if e.Label != "" {
		msg += fmt.Sprintf(" for %q", e.Label)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	return msg + ": " + e.Reason
}

// A SceneRenderer renders posed catalog objects as seen from each camera. Objects must carry a
// TWO pose and cameras a TWC pose, both in the same world frame.
type SceneRenderer interface {
	Render(
		ctx context.Context,
		objects []scene.ObjectData,
		cameras []*scene.CameraData,
		lights []LightData,
		opts RenderOptions,
	) ([]Rendering, error)
}
