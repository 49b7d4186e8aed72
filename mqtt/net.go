// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"

	"github.com/eclipse/paho.golang/packets"
)

// Broker URL schemes and their default ports.
var defaultPorts = map[string]string{
	"tcp":   "1883",
	"mqtt":  "1883",
	"ssl":   "8883",
	"tls":   "8883",
	"mqtts": "8883",
}

// ParseBroker validates a broker URL such as tcp://localhost:1883 and returns
// it with the default port filled in.
func ParseBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return nil, &InvalidArgumentError{
			message: "invalid broker URL",
			wrapped: err,
		}
	}

	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return nil, &InvalidArgumentError{
			message: "unsupported broker URL scheme " + u.Scheme,
		}
	}
	if u.Hostname() == "" {
		return nil, &InvalidArgumentError{message: "broker URL has no host"}
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u, nil
}

func isTLS(u *url.URL) bool {
	switch u.Scheme {
	case "ssl", "tls", "mqtts":
		return true
	default:
		return false
	}
}

// Open a thread-safe network connection to the broker, over TLS if the URL
// scheme asks for it.
func dial(ctx context.Context, broker string) (net.Conn, error) {
	u, err := ParseBroker(broker)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	if isTLS(u) {
		d := tls.Dialer{Config: &tls.Config{
			ServerName: u.Hostname(),
			MinVersion: tls.VersionTLS12,
		}}
		conn, err = d.DialContext(ctx, "tcp", u.Host)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", u.Host)
	}
	if err != nil {
		return nil, &ConnectionError{
			Broker:  broker,
			message: "error opening network connection",
			wrapped: err,
		}
	}
	return packets.NewThreadSafeConn(conn), nil
}
