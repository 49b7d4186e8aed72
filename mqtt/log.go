// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/eclipse/paho.golang/paho"
	"github.com/iancoleman/strcase"
	"github.com/monitorizapt/sensorfleet/internal/log"
)

type logger struct{ log.Logger }

func (l *logger) connecting(ctx context.Context, broker, clientID string) {
	l.Log(ctx, slog.LevelInfo, "connecting to MQTT broker",
		slog.String("broker", broker),
		slog.String("client_id", clientID),
	)
}

func (l *logger) connection(ctx context.Context, connected bool) {
	l.Log(ctx, slog.LevelInfo, "connection state changed",
		slog.Bool("connected", connected),
	)
}

func (l *logger) connectionLost(ctx context.Context, err error) {
	attrs := []slog.Attr{}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.Log(ctx, slog.LevelWarn, "connection lost", attrs...)
}

func (l *logger) dropped(ctx context.Context, topic string) {
	l.Log(ctx, slog.LevelDebug, "not connected; message dropped",
		slog.String("topic", topic),
	)
}

func (l *logger) publish(ctx context.Context, topic string, payload []byte) {
	l.Log(ctx, slog.LevelDebug, "publish",
		slog.String("topic", topic),
		slog.Int("bytes", len(payload)),
	)
}

func (l *logger) subscribed(ctx context.Context, topic string) {
	l.Log(ctx, slog.LevelInfo, "subscribed", slog.String("topic", topic))
}

func (l *logger) unhandled(ctx context.Context, topic string) {
	l.Log(ctx, slog.LevelDebug, "no handler for message",
		slog.String("topic", topic),
	)
}

func (l *logger) handlerPanic(ctx context.Context, topic string, r any) {
	l.Log(ctx, slog.LevelError, "command handler panicked",
		slog.String("topic", topic),
		slog.String("panic", fmt.Sprint(r)),
	)
}

func (l *logger) shutdown(ctx context.Context, clientID string) {
	l.Log(ctx, slog.LevelInfo, "connection manager shut down",
		slog.String("client_id", clientID),
	)
}

// Packet logs an MQTT v5 control packet at debug level with its fields as
// snake_cased attributes.
func (l *logger) packet(ctx context.Context, name string, packet any) {
	// This is expensive; bail out if we don't need it.
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}

	val := realValue(reflect.ValueOf(packet))
	if missingValue(val) {
		l.Log(ctx, slog.LevelWarn, fmt.Sprintf("%s not available", name))
	} else {
		l.Log(ctx, slog.LevelDebug, name, reflectAttrs(val)...)
	}
}

func reflectAttrs(val reflect.Value) []slog.Attr {
	if val.Kind() != reflect.Struct {
		return nil
	}

	typ := val.Type()
	var attrs []slog.Attr
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}

		attrs = append(attrs, reflectAttr(
			strcase.ToSnake(f.Name),
			realValue(val.Field(i)),
		)...)
	}
	return attrs
}

func reflectAttr(name string, val reflect.Value) []slog.Attr {
	// Ignore zero values to keep the log cleaner.
	if missingValue(val) {
		return nil
	}

	switch name {
	// Paho's struct nesting is not particularly useful to log.
	case "properties":
		return reflectAttrs(val)

	// The manager subscribes one topic at a time.
	case "subscriptions":
		if subs, ok := val.Interface().([]paho.SubscribeOptions); ok && len(subs) > 0 {
			return reflectAttrs(reflect.ValueOf(subs[0]))
		}
	case "reasons":
		if reasons, ok := val.Interface().([]byte); ok && len(reasons) > 0 {
			return []slog.Attr{slog.Int("reason_code", int(reasons[0]))}
		}

	// Payloads and credentials stay out of the log.
	case "payload", "password":
		return nil

	// Fix QoS not being actually PascalCased.
	case "qo_s":
		return []slog.Attr{slog.Any("qos", val.Interface())}
	}

	switch v := val.Interface().(type) {
	case []byte:
		return []slog.Attr{slog.String(name, string(v))}

	case paho.UserProperties:
		if len(v) == 0 {
			return nil
		}
		attrs := make([]any, len(v))
		for i, p := range v {
			attrs[i] = slog.String(p.Key, p.Value)
		}
		return []slog.Attr{slog.Group(name, attrs...)}
	}

	switch val.Kind() {
	case reflect.Struct:
		as := reflectAttrs(val)
		if len(as) == 0 {
			return nil
		}

		cpy := make([]any, len(as))
		for i, a := range as {
			cpy[i] = a
		}
		return []slog.Attr{slog.Group(name, cpy...)}

	// Callbacks and channels carry nothing worth logging.
	case reflect.Func, reflect.Chan, reflect.Interface:
		return nil
	}

	return []slog.Attr{slog.Any(name, val.Interface())}
}

func realValue(val reflect.Value) reflect.Value {
	for val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	return val
}

func missingValue(val reflect.Value) bool {
	return val.Kind() == reflect.Invalid || val.IsZero()
}
