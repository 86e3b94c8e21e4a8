// Package agentrpc carries show requests between a session and a
// standalone agent process. Each request is an OTLP log record whose body
// is the notification text and whose attributes carry the other fields.
package agentrpc

import (
	"errors"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/nixlim/buzz/internal/notify"
)

// Attribute keys on a show record.
const (
	AttrEventName          = "event.name"
	AttrTitle              = "notification.title"
	AttrIcon               = "notification.icon"
	AttrTag                = "notification.tag"
	AttrSilent             = "notification.silent"
	AttrRequireInteraction = "notification.require_interaction"
	AttrRenotify           = "notification.renotify"
	AttrVibrate            = "notification.vibrate"

	// AttrOrigin is a resource attribute naming the sending session's origin.
	AttrOrigin = "buzz.origin"

	// ShowEvent is the event.name of a show record.
	ShowEvent = "buzz.notification.show"

	scopeName = "github.com/nixlim/buzz"
)

var errNoTitle = errors.New("show record has no notification.title")

// NewExportRequest wraps notifications from one origin into an export.
func NewExportRequest(origin string, now time.Time, notes ...notify.Notification) *collogspb.ExportLogsServiceRequest {
	records := make([]*logspb.LogRecord, 0, len(notes))
	for _, n := range notes {
		records = append(records, EncodeNotification(n, now))
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{
					stringKV("service.name", "buzz"),
					stringKV(AttrOrigin, origin),
				},
			},
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: scopeName},
				LogRecords: records,
			}},
		}},
	}
}

// EncodeNotification converts n to a log record.
func EncodeNotification(n notify.Notification, now time.Time) *logspb.LogRecord {
	ts := uint64(now.UnixNano())
	attrs := []*commonpb.KeyValue{
		stringKV(AttrEventName, ShowEvent),
		stringKV(AttrTitle, n.Title),
		boolKV(AttrSilent, n.Silent),
		boolKV(AttrRequireInteraction, n.RequireInteraction),
		boolKV(AttrRenotify, n.Renotify),
	}
	if n.Icon != "" {
		attrs = append(attrs, stringKV(AttrIcon, n.Icon))
	}
	if n.Tag != "" {
		attrs = append(attrs, stringKV(AttrTag, n.Tag))
	}
	if len(n.Vibrate) > 0 {
		vals := make([]*commonpb.AnyValue, len(n.Vibrate))
		for i, ms := range n.Vibrate {
			vals[i] = &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: int64(ms)}}
		}
		attrs = append(attrs, &commonpb.KeyValue{
			Key:   AttrVibrate,
			Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: vals}}},
		})
	}

	return &logspb.LogRecord{
		TimeUnixNano:         ts,
		ObservedTimeUnixNano: ts,
		SeverityNumber:       logspb.SeverityNumber_SEVERITY_NUMBER_INFO,
		SeverityText:         "INFO",
		Body:                 &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: n.Body}},
		Attributes:           attrs,
	}
}

// DecodeNotification is the inverse of EncodeNotification. Unknown
// attributes are ignored.
func DecodeNotification(r *logspb.LogRecord) (notify.Notification, error) {
	var n notify.Notification
	n.Body = r.GetBody().GetStringValue()

	for _, kv := range r.GetAttributes() {
		v := kv.GetValue()
		switch kv.GetKey() {
		case AttrTitle:
			n.Title = v.GetStringValue()
		case AttrIcon:
			n.Icon = v.GetStringValue()
		case AttrTag:
			n.Tag = v.GetStringValue()
		case AttrSilent:
			n.Silent = v.GetBoolValue()
		case AttrRequireInteraction:
			n.RequireInteraction = v.GetBoolValue()
		case AttrRenotify:
			n.Renotify = v.GetBoolValue()
		case AttrVibrate:
			for _, p := range v.GetArrayValue().GetValues() {
				n.Vibrate = append(n.Vibrate, int(p.GetIntValue()))
			}
		}
	}

	if n.Title == "" {
		return notify.Notification{}, errNoTitle
	}
	return n, nil
}

// resourceOrigin extracts the buzz.origin resource attribute.
func resourceOrigin(res *resourcepb.Resource) string {
	for _, kv := range res.GetAttributes() {
		if kv.GetKey() == AttrOrigin {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}

func stringKV(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}}
}

func boolKV(k string, v bool) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v}}}
}
