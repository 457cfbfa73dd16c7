package model

import "time"

type ExpiryType int

const (
	ExpiryNone ExpiryType = iota
	ExpiryAfterSend
	ExpiryAfterRead
)

type ExpiryMode struct {
	Type     ExpiryType    `json:"type" bson:"type"`
	Duration time.Duration `json:"duration" bson:"duration"`
}

func (m ExpiryMode) Millis() int64 {
	if m.Type == ExpiryNone {
		return 0
	}
	return m.Duration.Milliseconds()
}

func (m ExpiryMode) Seconds() int64 {
	if m.Type == ExpiryNone {
		return 0
	}
	return int64(m.Duration / time.Second)
}
