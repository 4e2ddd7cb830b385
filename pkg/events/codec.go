// Package events publishes update progress over MQTT.
package events

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/robotalks/reflash/pkg/update"
)

// Event fields on the wire.
const (
	FieldRunID   = "runId"
	FieldPort    = "port"
	FieldFrom    = "from"
	FieldTo      = "to"
	FieldTime    = "time"
	FieldMessage = "message"
	FieldError   = "error"
)

// Encode encodes an event as a JSON object. The time is in RFC 3339 form.
func Encode(e update.Event) ([]byte, error) {
	ts, err := protojson.Marshal(timestamppb.New(e.Time))
	if err != nil {
		return nil, err
	}
	tsVal := &structpb.Value{}
	if err = protojson.Unmarshal(ts, tsVal); err != nil {
		return nil, err
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRunID:   structpb.NewStringValue(e.RunID),
		FieldPort:    structpb.NewStringValue(e.Port),
		FieldFrom:    structpb.NewStringValue(e.From.String()),
		FieldTo:      structpb.NewStringValue(e.To.String()),
		FieldTime:    tsVal,
		FieldMessage: structpb.NewStringValue(e.Message),
	}}
	if e.Err != nil {
		msg.Fields[FieldError] = structpb.NewStringValue(e.Err.Error())
	}
	return protojson.Marshal(msg)
}

// Decode parses an encoded event.
func Decode(payload []byte) (update.Event, error) {
	var e update.Event
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(payload, msg); err != nil {
		return e, err
	}
	fields := msg.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}
	e.RunID, e.Port, e.Message = str(FieldRunID), str(FieldPort), str(FieldMessage)

	var ok bool
	if e.From, ok = update.ParseState(str(FieldFrom)); !ok {
		return e, fmt.Errorf("invalid state %q", str(FieldFrom))
	}
	if e.To, ok = update.ParseState(str(FieldTo)); !ok {
		return e, fmt.Errorf("invalid state %q", str(FieldTo))
	}
	if tsVal := fields[FieldTime]; tsVal != nil {
		encoded, err := protojson.Marshal(tsVal)
		if err != nil {
			return e, err
		}
		ts := &timestamppb.Timestamp{}
		if err = protojson.Unmarshal(encoded, ts); err != nil {
			return e, fmt.Errorf("invalid time: %w", err)
		}
		e.Time = ts.AsTime()
	}
	if msg := str(FieldError); msg != "" {
		e.Err = errors.New(msg)
	}
	return e, nil
}
