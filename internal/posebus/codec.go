// Package posebus carries pose messages between the scene processes as UDP
// datagrams encoded in protobuf wire format.
package posebus

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/asteroid-view/internal/geom"
)

// MaxDatagramSize bounds an encoded message.
const MaxDatagramSize = 1024

// Message field numbers.
const (
	fieldTopic       protowire.Number = 1
	fieldSeq         protowire.Number = 2
	fieldStampNanos  protowire.Number = 3
	fieldPosition    protowire.Number = 4
	fieldOrientation protowire.Number = 5
)

var (
	// ErrTruncated is returned for datagrams that end inside a field.
	ErrTruncated = errors.New("posebus: truncated message")
	// ErrNoTopic is returned for messages without a topic.
	ErrNoTopic = errors.New("posebus: message has no topic")
)

// Message is one pose event on a topic.
type Message struct {
	Topic string
	Seq   uint64
	Stamp time.Time
	Pose  geom.Pose
}

// Marshal encodes m. Pose components are written even when zero so that the
// decoder never has to guess the identity quaternion.
func Marshal(m Message) []byte {
	b := make([]byte, 0, 128)
	b = protowire.AppendTag(b, fieldTopic, protowire.BytesType)
	b = protowire.AppendString(b, m.Topic)
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Seq)
	if !m.Stamp.IsZero() {
		b = protowire.AppendTag(b, fieldStampNanos, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Stamp.UnixNano()))
	}

	p := m.Pose.Position
	b = protowire.AppendTag(b, fieldPosition, protowire.BytesType)
	b = protowire.AppendBytes(b, appendDoubles(nil, p.X, p.Y, p.Z))

	q := m.Pose.Orientation
	b = protowire.AppendTag(b, fieldOrientation, protowire.BytesType)
	b = protowire.AppendBytes(b, appendDoubles(nil, q.Imag, q.Jmag, q.Kmag, q.Real))
	return b
}

func appendDoubles(b []byte, vs ...float64) []byte {
	for i, v := range vs {
		b = protowire.AppendTag(b, protowire.Number(i+1), protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

// Unmarshal decodes a datagram. Unknown fields are skipped. The decoded pose
// is not validated; a non-unit quaternion is returned as received.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTopic && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Message{}, fmt.Errorf("%w: topic: %v", ErrTruncated, protowire.ParseError(n))
			}
			m.Topic = v
			b = b[n:]
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, fmt.Errorf("%w: seq: %v", ErrTruncated, protowire.ParseError(n))
			}
			m.Seq = v
			b = b[n:]
		case num == fieldStampNanos && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, fmt.Errorf("%w: stamp: %v", ErrTruncated, protowire.ParseError(n))
			}
			m.Stamp = time.Unix(0, int64(v))
			b = b[n:]
		case (num == fieldPosition || num == fieldOrientation) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, fmt.Errorf("%w: pose: %v", ErrTruncated, protowire.ParseError(n))
			}
			d, err := consumeDoubles(v)
			if err != nil {
				return Message{}, err
			}
			if num == fieldPosition {
				m.Pose.Position = r3.Vec{X: d[1], Y: d[2], Z: d[3]}
			} else {
				m.Pose.Orientation = geom.FromXYZW(d[1], d[2], d[3], d[4])
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if m.Topic == "" {
		return Message{}, ErrNoTopic
	}
	return m, nil
}

// consumeDoubles reads fixed64 fields 1..4 of a nested message, indexed by
// field number.
func consumeDoubles(b []byte) ([5]float64, error) {
	var d [5]float64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return d, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.Fixed64Type && num >= 1 && num <= 4 {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return d, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
			}
			d[num] = math.Float64frombits(v)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return d, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return d, nil
}
