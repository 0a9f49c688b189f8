package visualiser

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/tf"
)

// UpdateKind distinguishes the payload of an Update.
type UpdateKind string

const (
	KindTransform UpdateKind = "transform"
	KindMarkers   UpdateKind = "markers"
)

// Update is one scene change streamed to clients.
type Update struct {
	Kind UpdateKind
	Seq  uint64

	// Set for KindTransform.
	Transform tf.TransformStamped

	// Set for KindMarkers.
	Topic   string
	Markers marker.Array
}

// SubscribeRequest selects what a client receives.
type SubscribeRequest struct {
	// Frames limits transforms to these child frames; empty means all.
	Frames []string
	// IncludeMarkers enables marker collections.
	IncludeMarkers bool
}

// accepts reports whether u should be sent to a client with this request.
func (r SubscribeRequest) accepts(u Update) bool {
	switch u.Kind {
	case KindMarkers:
		return r.IncludeMarkers
	case KindTransform:
		if len(r.Frames) == 0 {
			return true
		}
		for _, f := range r.Frames {
			if f == u.Transform.Child {
				return true
			}
		}
	}
	return false
}

// Struct encodes the request for the wire.
func (r SubscribeRequest) Struct() *structpb.Struct {
	frames := make([]*structpb.Value, 0, len(r.Frames))
	for _, f := range r.Frames {
		frames = append(frames, structpb.NewStringValue(f))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"frames":          structpb.NewListValue(&structpb.ListValue{Values: frames}),
		"include_markers": structpb.NewBoolValue(r.IncludeMarkers),
	}}
}

// ParseSubscribeRequest decodes a request. A nil or empty request asks for
// everything.
func ParseSubscribeRequest(s *structpb.Struct) (SubscribeRequest, error) {
	req := SubscribeRequest{IncludeMarkers: true}
	fields := s.GetFields()
	if v, ok := fields["include_markers"]; ok {
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return req, fmt.Errorf("include_markers must be a bool")
		}
		req.IncludeMarkers = b.BoolValue
	}
	if v, ok := fields["frames"]; ok {
		list := v.GetListValue()
		if list == nil {
			return req, fmt.Errorf("frames must be a list")
		}
		for i, f := range list.GetValues() {
			name, ok := f.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return req, fmt.Errorf("frames[%d] must be a string", i)
			}
			req.Frames = append(req.Frames, name.StringValue)
		}
	}
	return req, nil
}

// Stamps are carried as decimal strings so nanosecond precision survives the
// float64 number type.
func stampValue(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseStamp(s string) (time.Time, error) {
	ns, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stamp_ns %q: %w", s, err)
	}
	if ns == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, ns), nil
}

func vecMap(v r3.Vec) map[string]interface{} {
	return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}
}

func quatMap(q quat.Number) map[string]interface{} {
	return map[string]interface{}{"x": q.Imag, "y": q.Jmag, "z": q.Kmag, "w": q.Real}
}

func markerMap(m marker.Marker) map[string]interface{} {
	return map[string]interface{}{
		"type":                        int(m.Type),
		"action":                      int(m.Action),
		"ns":                          m.Namespace,
		"id":                          m.ID,
		"frame_id":                    m.FrameID,
		"stamp_ns":                    stampValue(m.Stamp),
		"position":                    vecMap(m.Pose.Position),
		"orientation":                 quatMap(m.Pose.Orientation),
		"scale":                       vecMap(m.Scale),
		"color":                       map[string]interface{}{"r": m.Color.R, "g": m.Color.G, "b": m.Color.B, "a": m.Color.A},
		"mesh_resource":               m.MeshResource,
		"mesh_use_embedded_materials": m.UseEmbeddedMaterials,
	}
}

// Struct encodes u for the wire.
func (u Update) Struct() (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"kind": string(u.Kind),
		"seq":  u.Seq,
	}
	switch u.Kind {
	case KindTransform:
		ts := u.Transform
		fields["parent"] = ts.Parent
		fields["child"] = ts.Child
		fields["stamp_ns"] = stampValue(ts.Stamp)
		fields["position"] = vecMap(ts.Pose.Position)
		fields["orientation"] = quatMap(ts.Pose.Orientation)
	case KindMarkers:
		markers := make([]interface{}, 0, len(u.Markers.Markers))
		for _, m := range u.Markers.Markers {
			markers = append(markers, markerMap(m))
		}
		fields["topic"] = u.Topic
		fields["markers"] = markers
	default:
		return nil, fmt.Errorf("unknown update kind %q", u.Kind)
	}
	return structpb.NewStruct(fields)
}

// fieldReader pulls typed values out of a Struct, remembering the first error.
type fieldReader struct {
	fields map[string]*structpb.Value
	err    error
}

func (r *fieldReader) fail(key, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: expected %s", key, want)
	}
}

func (r *fieldReader) number(key string) float64 {
	v, ok := r.fields[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		r.fail(key, "number")
		return 0
	}
	return v.NumberValue
}

func (r *fieldReader) str(key string) string {
	v, ok := r.fields[key].GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(key, "string")
		return ""
	}
	return v.StringValue
}

func (r *fieldReader) boolean(key string) bool {
	v, ok := r.fields[key].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		r.fail(key, "bool")
		return false
	}
	return v.BoolValue
}

func (r *fieldReader) sub(key string) *fieldReader {
	s := r.fields[key].GetStructValue()
	if s == nil {
		r.fail(key, "struct")
		return &fieldReader{err: r.err}
	}
	return &fieldReader{fields: s.GetFields()}
}

func (r *fieldReader) stamp(key string) time.Time {
	s := r.str(key)
	if r.err != nil {
		return time.Time{}
	}
	t, err := parseStamp(s)
	if err != nil {
		r.err = err
	}
	return t
}

func (r *fieldReader) vec(key string) r3.Vec {
	s := r.sub(key)
	v := r3.Vec{X: s.number("x"), Y: s.number("y"), Z: s.number("z")}
	r.absorb(s)
	return v
}

func (r *fieldReader) quat(key string) quat.Number {
	s := r.sub(key)
	q := geom.FromXYZW(s.number("x"), s.number("y"), s.number("z"), s.number("w"))
	r.absorb(s)
	return q
}

func (r *fieldReader) absorb(child *fieldReader) {
	if r.err == nil && child.err != nil {
		r.err = child.err
	}
}

// DecodeUpdate parses an Update received from the stream.
func DecodeUpdate(s *structpb.Struct) (Update, error) {
	if s == nil {
		return Update{}, errors.New("nil update")
	}
	r := &fieldReader{fields: s.GetFields()}
	u := Update{
		Kind: UpdateKind(r.str("kind")),
		Seq:  uint64(r.number("seq")),
	}

	switch u.Kind {
	case KindTransform:
		u.Transform = tf.TransformStamped{
			Parent: r.str("parent"),
			Child:  r.str("child"),
			Stamp:  r.stamp("stamp_ns"),
			Pose:   geom.Pose{Position: r.vec("position"), Orientation: r.quat("orientation")},
		}
	case KindMarkers:
		u.Topic = r.str("topic")
		list := s.GetFields()["markers"].GetListValue()
		if list == nil {
			r.fail("markers", "list")
			break
		}
		for _, v := range list.GetValues() {
			mr := &fieldReader{fields: v.GetStructValue().GetFields()}
			u.Markers.Markers = append(u.Markers.Markers, decodeMarker(mr))
			r.absorb(mr)
		}
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown update kind %q", u.Kind)
		}
	}

	if r.err != nil {
		return Update{}, r.err
	}
	return u, nil
}

func decodeMarker(r *fieldReader) marker.Marker {
	color := r.sub("color")
	m := marker.Marker{
		Type:      marker.Type(r.number("type")),
		Action:    marker.Action(r.number("action")),
		Namespace: r.str("ns"),
		ID:        int(r.number("id")),
		FrameID:   r.str("frame_id"),
		Stamp:     r.stamp("stamp_ns"),
		Pose:      geom.Pose{Position: r.vec("position"), Orientation: r.quat("orientation")},
		Scale:     r.vec("scale"),
		Color: marker.RGBA{
			R: float32(color.number("r")),
			G: float32(color.number("g")),
			B: float32(color.number("b")),
			A: float32(color.number("a")),
		},
		MeshResource:         r.str("mesh_resource"),
		UseEmbeddedMaterials: r.boolean("mesh_use_embedded_materials"),
	}
	r.absorb(color)
	return m
}
