package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// MessageWire is the JSON form of a log record sent by a guest through the
// log_message host function.
type MessageWire struct {
	Timestamp time.Time  `json:"timestamp"`
	Attrs     []AttrWire `json:"attrs,omitempty"`
	Level     string     `json:"level"`
	Message   string     `json:"message"`
}

// AttrWire is a single attribute in MessageWire.
type AttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"` // string, int64, uint64, bool, float64, time, duration, error, json, any
	Value string `json:"value"`
}

// NewMessage encodes r for the wire.
func NewMessage(r slog.Record) MessageWire {
	msg := MessageWire{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, toAttrWire(a))
		return true
	})
	return msg
}

// Record decodes m. Typed values that fail to parse are kept as strings.
func (m MessageWire) Record() slog.Record {
	var level slog.Level
	if err := level.UnmarshalText([]byte(m.Level)); err != nil {
		level = slog.LevelInfo
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r := slog.NewRecord(ts, level, m.Message, 0)
	for _, a := range m.Attrs {
		r.AddAttrs(a.attr())
	}
	return r
}

// Replay decodes a guest log message and passes it to logger's handler,
// adding attrs. Payloads that are not a MessageWire are logged raw.
func Replay(ctx context.Context, logger *slog.Logger, payload []byte, attrs ...slog.Attr) {
	var msg MessageWire
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Message == "" {
		logger.LogAttrs(ctx, slog.LevelInfo, "guest log (raw)", append(attrs, slog.String("payload", string(payload)))...)
		return
	}
	r := msg.Record()
	if !logger.Enabled(ctx, r.Level) {
		return
	}
	r.AddAttrs(attrs...)
	_ = logger.Handler().Handle(ctx, r)
}

func toAttrWire(attr slog.Attr) AttrWire {
	wire := AttrWire{Key: attr.Key}
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = strconv.FormatBool(attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = strconv.FormatFloat(attr.Value.Float64(), 'g', -1, 64)
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindGroup:
		// Groups are flattened into one JSON object.
		fields := map[string]string{}
		for _, a := range attr.Value.Group() {
			fields[a.Key] = toAttrWire(a).Value
		}
		data, _ := json.Marshal(fields)
		wire.Type = "json"
		wire.Value = string(data)
	default:
		v := attr.Value.Any()
		switch {
		case v == nil:
			wire.Type = "any"
			wire.Value = "<nil>"
		case isError(v):
			wire.Type = "error"
			wire.Value = v.(error).Error()
		default:
			if data, err := json.Marshal(v); err == nil {
				wire.Type = "json"
				wire.Value = string(data)
			} else {
				wire.Type = "any"
				wire.Value = fmt.Sprintf("%v", v)
			}
		}
	}
	return wire
}

func isError(v any) bool {
	_, ok := v.(error)
	return ok
}

func (a AttrWire) attr() slog.Attr {
	switch a.Type {
	case "int64":
		if n, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			return slog.Int64(a.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(a.Value, 10, 64); err == nil {
			return slog.Uint64(a.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(a.Value); err == nil {
			return slog.Bool(a.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(a.Value, 64); err == nil {
			return slog.Float64(a.Key, f)
		}
	case "time":
		if t, err := time.Parse(time.RFC3339Nano, a.Value); err == nil {
			return slog.Time(a.Key, t)
		}
	case "duration":
		if d, err := time.ParseDuration(a.Value); err == nil {
			return slog.Duration(a.Key, d)
		}
	case "json":
		if json.Valid([]byte(a.Value)) {
			return slog.Any(a.Key, json.RawMessage(a.Value))
		}
	}
	return slog.String(a.Key, a.Value)
}
