package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// DefaultConfigPath is the path to the canonical scene defaults file.
const DefaultConfigPath = "config/asteroid.defaults.json"

// ErrMissing marks a required parameter that was not supplied.
var ErrMissing = errors.New("missing required parameter")

// SceneConfig holds the parameters read once at startup by both scene
// processes. Values are immutable for the lifetime of the process.
type SceneConfig struct {
	// Pose bus topics
	ObjectPoseTopic *string `json:"object_pose_topic,omitempty"`
	CameraPoseTopic *string `json:"camera_pose_topic,omitempty"`

	// Camera rig
	CamBaseline    *float64   `json:"cam_baseline,omitempty"`
	CameraPosition *[]float64 `json:"camera_position,omitempty"`

	// Asteroid mesh
	File3D       *string    `json:"file_3d,omitempty"`
	MeshPackage  *string    `json:"mesh_package,omitempty"`
	ScaleObject  *float64   `json:"scale_object,omitempty"`
	OffsetObject *[]float64 `json:"offset_object,omitempty"`

	// Motion model
	Omega *float64 `json:"omega,omitempty"`

	// Loop rates in Hz
	PublishRateHz *float64 `json:"publish_rate_hz,omitempty"`
	ViewRateHz    *float64 `json:"view_rate_hz,omitempty"`

	// Transport
	PoseBusAddr    *string `json:"pose_bus_addr,omitempty"`
	VisualiserAddr *string `json:"visualiser_addr,omitempty"`
	DebugListen    *string `json:"debug_listen,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64     { return &v }
func ptrString(v string) *string        { return &v }
func ptrFloats(v ...float64) *[]float64 { return &v }

func isSet(p *string) bool  { return p != nil && *p != "" }
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func validVec3(p *[]float64) bool {
	if p == nil || len(*p) != 3 {
		return false
	}
	for _, f := range *p {
		if !finite(f) {
			return false
		}
	}
	return true
}

func vec3(v []float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Load reads a SceneConfig from a JSON file. The file must have a .json
// extension and be under 1MB. Fields omitted from the file fall back to the
// defaults of the Get* accessors, except the required ones checked by
// ValidatePublisher and ValidateViewer.
func Load(path string) (*SceneConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &SceneConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that are set. It does not require any field.
func (c *SceneConfig) Validate() error {
	if c.CamBaseline != nil && !finite(*c.CamBaseline) {
		return fmt.Errorf("cam_baseline must be finite, got %f", *c.CamBaseline)
	}
	if c.ScaleObject != nil && (!finite(*c.ScaleObject) || *c.ScaleObject <= 0) {
		return fmt.Errorf("scale_object must be positive, got %f", *c.ScaleObject)
	}
	if c.OffsetObject != nil && !validVec3(c.OffsetObject) {
		return fmt.Errorf("offset_object must have 3 finite components, got %v", *c.OffsetObject)
	}
	if c.CameraPosition != nil && !validVec3(c.CameraPosition) {
		return fmt.Errorf("camera_position must have 3 finite components, got %v", *c.CameraPosition)
	}
	if c.Omega != nil && !finite(*c.Omega) {
		return fmt.Errorf("omega must be finite, got %f", *c.Omega)
	}
	if c.PublishRateHz != nil && (!finite(*c.PublishRateHz) || *c.PublishRateHz <= 0) {
		return fmt.Errorf("publish_rate_hz must be positive, got %f", *c.PublishRateHz)
	}
	if c.ViewRateHz != nil && (!finite(*c.ViewRateHz) || *c.ViewRateHz <= 0) {
		return fmt.Errorf("view_rate_hz must be positive, got %f", *c.ViewRateHz)
	}
	if isSet(c.ObjectPoseTopic) && isSet(c.CameraPoseTopic) && *c.ObjectPoseTopic == *c.CameraPoseTopic {
		return fmt.Errorf("object_pose_topic and camera_pose_topic must differ, both %q", *c.ObjectPoseTopic)
	}
	return nil
}

// ValidatePublisher checks the parameters the pose publisher cannot run without.
func (c *SceneConfig) ValidatePublisher() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !isSet(c.ObjectPoseTopic) {
		return fmt.Errorf("%w: object_pose_topic", ErrMissing)
	}
	if !isSet(c.CameraPoseTopic) {
		return fmt.Errorf("%w: camera_pose_topic", ErrMissing)
	}
	return nil
}

// ValidateViewer checks the parameters the asteroid viewer cannot run without.
func (c *SceneConfig) ValidateViewer() error {
	if err := c.ValidatePublisher(); err != nil {
		return err
	}
	switch {
	case c.CamBaseline == nil:
		return fmt.Errorf("%w: cam_baseline", ErrMissing)
	case !isSet(c.File3D):
		return fmt.Errorf("%w: file_3d", ErrMissing)
	case c.ScaleObject == nil:
		return fmt.Errorf("%w: scale_object", ErrMissing)
	case c.OffsetObject == nil:
		return fmt.Errorf("%w: offset_object", ErrMissing)
	}
	return nil
}

// GetObjectPoseTopic returns object_pose_topic or "".
func (c *SceneConfig) GetObjectPoseTopic() string {
	if c.ObjectPoseTopic == nil {
		return ""
	}
	return *c.ObjectPoseTopic
}

// GetCameraPoseTopic returns camera_pose_topic or "".
func (c *SceneConfig) GetCameraPoseTopic() string {
	if c.CameraPoseTopic == nil {
		return ""
	}
	return *c.CameraPoseTopic
}

// GetCamBaseline returns the lens separation in metres.
func (c *SceneConfig) GetCamBaseline() float64 {
	if c.CamBaseline == nil {
		return 0.2
	}
	return *c.CamBaseline
}

// GetCameraPosition returns the camera position the publisher reports.
func (c *SceneConfig) GetCameraPosition() r3.Vec {
	if !validVec3(c.CameraPosition) {
		return r3.Vec{}
	}
	return vec3(*c.CameraPosition)
}

// GetFile3D returns the mesh file name or "".
func (c *SceneConfig) GetFile3D() string {
	if c.File3D == nil {
		return ""
	}
	return *c.File3D
}

// GetMeshPackage returns the prefix joined to the mesh file name.
func (c *SceneConfig) GetMeshPackage() string {
	if !isSet(c.MeshPackage) {
		return "package://view_asteroid/meshes/"
	}
	return *c.MeshPackage
}

// GetScaleObject returns the uniform mesh scale.
func (c *SceneConfig) GetScaleObject() float64 {
	if c.ScaleObject == nil {
		return 1.0
	}
	return *c.ScaleObject
}

// GetOffsetObject returns the mesh offset in mesh units.
func (c *SceneConfig) GetOffsetObject() r3.Vec {
	if !validVec3(c.OffsetObject) {
		return r3.Vec{}
	}
	return vec3(*c.OffsetObject)
}

// GetOmega returns the asteroid spin rate in rad/s.
func (c *SceneConfig) GetOmega() float64 {
	if c.Omega == nil {
		return 0.25
	}
	return *c.Omega
}

// GetPublishRateHz returns the pose publisher tick rate.
func (c *SceneConfig) GetPublishRateHz() float64 {
	if c.PublishRateHz == nil {
		return 100.0
	}
	return *c.PublishRateHz
}

// GetViewRateHz returns the viewer idle loop rate.
func (c *SceneConfig) GetViewRateHz() float64 {
	if c.ViewRateHz == nil {
		return 200.0
	}
	return *c.ViewRateHz
}

// GetPublishInterval returns the publisher tick period. A non-positive rate
// falls back to 100 Hz.
func (c *SceneConfig) GetPublishInterval() time.Duration {
	return timeutil.RateInterval(c.GetPublishRateHz(), 10*time.Millisecond)
}

// GetViewInterval returns the viewer tick period. A non-positive rate falls
// back to 200 Hz.
func (c *SceneConfig) GetViewInterval() time.Duration {
	return timeutil.RateInterval(c.GetViewRateHz(), 5*time.Millisecond)
}

// GetPoseBusAddr returns the UDP address the pose bus uses.
func (c *SceneConfig) GetPoseBusAddr() string {
	if !isSet(c.PoseBusAddr) {
		return "127.0.0.1:7400"
	}
	return *c.PoseBusAddr
}

// GetVisualiserAddr returns the gRPC listen address for viewers.
func (c *SceneConfig) GetVisualiserAddr() string {
	if !isSet(c.VisualiserAddr) {
		return "localhost:50061"
	}
	return *c.VisualiserAddr
}

// GetDebugListen returns the debug HTTP listen address; empty disables it.
func (c *SceneConfig) GetDebugListen() string {
	if c.DebugListen == nil {
		return ""
	}
	return *c.DebugListen
}
