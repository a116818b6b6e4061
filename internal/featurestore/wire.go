package featurestore

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// Frame payloads are stored in protobuf wire format so downstream
// training pipelines can decode them with a mirrored message
// definition. Field numbers are frozen; add new fields, never renumber.
const (
	frameFieldTimestamp = 1
	frameFieldEgo       = 2
	frameFieldOthers    = 3

	historyFieldRecords   = 1
	historyFieldTrainable = 2

	recordFieldObstacleID = 1
	recordFieldTimestamp  = 2
	recordFieldPosition   = 3
	recordFieldHeading    = 4
	recordFieldLength     = 5
	recordFieldWidth      = 6
	recordFieldPolygon    = 7

	pointFieldX = 1
	pointFieldY = 2
	pointFieldZ = 3
)

// EncodeFrameEnvironment serializes one frame environment. Zero-valued
// scalars are omitted, matching proto3 semantics.
func EncodeFrameEnvironment(env *obstacle.FrameEnvironment) []byte {
	var b []byte
	b = appendDouble(b, frameFieldTimestamp, env.Timestamp)
	b = protowire.AppendTag(b, frameFieldEgo, protowire.BytesType)
	b = protowire.AppendBytes(b, appendHistory(nil, env.Ego))
	for _, h := range env.Others {
		b = protowire.AppendTag(b, frameFieldOthers, protowire.BytesType)
		b = protowire.AppendBytes(b, appendHistory(nil, h))
	}
	return b
}

// DecodeFrameEnvironment parses a payload produced by
// EncodeFrameEnvironment. Unknown fields are skipped.
func DecodeFrameEnvironment(data []byte) (*obstacle.FrameEnvironment, error) {
	env := &obstacle.FrameEnvironment{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("failed to parse frame tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == frameFieldTimestamp && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to parse frame timestamp: %w", protowire.ParseError(n))
			}
			env.Timestamp = math.Float64frombits(v)
			data = data[n:]
		case num == frameFieldEgo && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to parse ego history: %w", protowire.ParseError(n))
			}
			h, err := parseHistory(raw)
			if err != nil {
				return nil, err
			}
			env.Ego = h
			data = data[n:]
		case num == frameFieldOthers && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to parse obstacle history: %w", protowire.ParseError(n))
			}
			h, err := parseHistory(raw)
			if err != nil {
				return nil, err
			}
			env.Others = append(env.Others, h)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip frame field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return env, nil
}

func appendHistory(b []byte, h obstacle.History) []byte {
	for _, rec := range h.Records {
		b = protowire.AppendTag(b, historyFieldRecords, protowire.BytesType)
		b = protowire.AppendBytes(b, appendRecord(nil, rec))
	}
	if h.Trainable {
		b = protowire.AppendTag(b, historyFieldTrainable, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func parseHistory(data []byte) (obstacle.History, error) {
	var h obstacle.History
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return h, fmt.Errorf("failed to parse history tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == historyFieldRecords && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return h, fmt.Errorf("failed to parse history record: %w", protowire.ParseError(n))
			}
			rec, err := parseRecord(raw)
			if err != nil {
				return h, err
			}
			h.Records = append(h.Records, rec)
			data = data[n:]
		case num == historyFieldTrainable && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return h, fmt.Errorf("failed to parse trainable flag: %w", protowire.ParseError(n))
			}
			h.Trainable = v != 0
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return h, fmt.Errorf("failed to skip history field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return h, nil
}

func appendRecord(b []byte, rec obstacle.HistoryRecord) []byte {
	if rec.ObstacleID != 0 {
		b = protowire.AppendTag(b, recordFieldObstacleID, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(rec.ObstacleID)))
	}
	b = appendDouble(b, recordFieldTimestamp, rec.Timestamp)
	b = protowire.AppendTag(b, recordFieldPosition, protowire.BytesType)
	b = protowire.AppendBytes(b, appendPoint(nil, rec.Position))
	b = appendDouble(b, recordFieldHeading, rec.Heading)
	b = appendDouble(b, recordFieldLength, rec.Length)
	b = appendDouble(b, recordFieldWidth, rec.Width)
	for _, p := range rec.Polygon {
		b = protowire.AppendTag(b, recordFieldPolygon, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPoint(nil, p))
	}
	return b
}

func parseRecord(data []byte) (obstacle.HistoryRecord, error) {
	var rec obstacle.HistoryRecord
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return rec, fmt.Errorf("failed to parse record tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == recordFieldObstacleID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse obstacle id: %w", protowire.ParseError(n))
			}
			rec.ObstacleID = int(protowire.DecodeZigZag(v))
			data = data[n:]
		case num == recordFieldTimestamp && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse record timestamp: %w", protowire.ParseError(n))
			}
			rec.Timestamp = math.Float64frombits(v)
			data = data[n:]
		case num == recordFieldPosition && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse record position: %w", protowire.ParseError(n))
			}
			p, err := parsePoint(raw)
			if err != nil {
				return rec, err
			}
			rec.Position = p
			data = data[n:]
		case num == recordFieldHeading && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse record heading: %w", protowire.ParseError(n))
			}
			rec.Heading = math.Float64frombits(v)
			data = data[n:]
		case num == recordFieldLength && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse record length: %w", protowire.ParseError(n))
			}
			rec.Length = math.Float64frombits(v)
			data = data[n:]
		case num == recordFieldWidth && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse record width: %w", protowire.ParseError(n))
			}
			rec.Width = math.Float64frombits(v)
			data = data[n:]
		case num == recordFieldPolygon && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return rec, fmt.Errorf("failed to parse polygon point: %w", protowire.ParseError(n))
			}
			p, err := parsePoint(raw)
			if err != nil {
				return rec, err
			}
			rec.Polygon = append(rec.Polygon, p)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return rec, fmt.Errorf("failed to skip record field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return rec, nil
}

func appendPoint(b []byte, p obstacle.Point) []byte {
	b = appendDouble(b, pointFieldX, p.X)
	b = appendDouble(b, pointFieldY, p.Y)
	b = appendDouble(b, pointFieldZ, p.Z)
	return b
}

func parsePoint(data []byte) (obstacle.Point, error) {
	var p obstacle.Point
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, fmt.Errorf("failed to parse point tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.Fixed64Type {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return p, fmt.Errorf("failed to skip point field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return p, fmt.Errorf("failed to parse point coordinate: %w", protowire.ParseError(n))
		}
		switch num {
		case pointFieldX:
			p.X = math.Float64frombits(v)
		case pointFieldY:
			p.Y = math.Float64frombits(v)
		case pointFieldZ:
			p.Z = math.Float64frombits(v)
		}
		data = data[n:]
	}
	return p, nil
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(v))
	return b
}
