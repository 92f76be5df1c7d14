package bus

import (
	"fmt"
	"strconv"
	"time"
)

// HookMessage is one IOC hook notification.
type HookMessage struct {
	ID        string `json:"id,omitempty"`
	Hook      string `json:"hook"`
	IOCID     string `json:"ioc_id"`
	IOCValue  string `json:"ioc_value"`
	IOCType   string `json:"ioc_type"`
	Timestamp int64  `json:"timestamp"`
}

// ResultMessage is the outcome of one pipeline run.
type ResultMessage struct {
	IOCID     string `json:"ioc_id"`
	Hook      string `json:"hook"`
	Analyzer  string `json:"analyzer"`
	JobID     string `json:"job_id,omitempty"`
	Outcome   string `json:"outcome"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// StreamMessage represents a message in a Redis Stream
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

func (m HookMessage) fields() map[string]interface{} {
	ts := m.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return map[string]interface{}{
		"hook":      m.Hook,
		"ioc_id":    m.IOCID,
		"ioc_value": m.IOCValue,
		"ioc_type":  m.IOCType,
		"timestamp": ts,
	}
}

func (m ResultMessage) fields() map[string]interface{} {
	ts := m.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return map[string]interface{}{
		"ioc_id":     m.IOCID,
		"hook":       m.Hook,
		"analyzer":   m.Analyzer,
		"job_id":     m.JobID,
		"outcome":    m.Outcome,
		"error_kind": m.ErrorKind,
		"error":      m.Error,
		"timestamp":  ts,
	}
}

// hookFromStream decodes a hooks stream entry. A message without hook or value is rejected.
func hookFromStream(msg StreamMessage) (HookMessage, error) {
	hm := HookMessage{
		ID:       msg.ID,
		Hook:     msg.Fields["hook"],
		IOCID:    msg.Fields["ioc_id"],
		IOCValue: msg.Fields["ioc_value"],
		IOCType:  msg.Fields["ioc_type"],
	}
	if hm.Hook == "" || hm.IOCValue == "" {
		return hm, fmt.Errorf("stream message %s is missing hook or ioc_value", msg.ID)
	}
	if ts := msg.Fields["timestamp"]; ts != "" {
		if v, err := parseTimestamp(ts); err == nil {
			hm.Timestamp = v
		}
	}
	return hm, nil
}

// parseTimestamp parses a timestamp string to epoch seconds
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	// numeric epoch, 13+ digits are milliseconds
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}
