package client

/*
fastread — fast tool in Go for counting domains and URIs in large access logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package client builds the shared HTTP transport used to stream remote inputs
(S3-compatible object stores). It is configured once and reused so that every
remote read shares one connection pool.

There is deliberately no overall request timeout: an object body is read for
as long as the counting run takes. Only connection setup and response headers
are bounded.
*/

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Transport defaults.
const (
	// DialTimeout is the maximum amount of time a dial will wait for a connect to complete.
	DialTimeout = 5 * time.Second
	// KeepAliveTimeout is the interval between keep-alive probes for active network connections.
	KeepAliveTimeout = 60 * time.Second
	// ResponseHeaderTimeout bounds the wait for the object store to start answering.
	ResponseHeaderTimeout = 30 * time.Second
	// MaxIdleConnsPerHost is the per-host idle pool. Inputs come from a single endpoint.
	MaxIdleConnsPerHost = 16
)

var (
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdleConns        = 32
	defaultTLSHandshakeTimeout = 10 * time.Second
	// defaultReadBufferSize matches the pool buffer size so a body read rarely
	// needs more than one syscall per chunk.
	defaultReadBufferSize = 1 << 20

	sharedTransport     *http.Transport
	sharedTransportLock sync.RWMutex
)

// Config holds transport settings. Zero fields fall back to defaults.
type Config struct {
	DialTimeout           time.Duration
	KeepAliveTimeout      time.Duration
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	ReadBufferSize        int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:           DialTimeout,
		KeepAliveTimeout:      KeepAliveTimeout,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		ReadBufferSize:        defaultReadBufferSize,
	}
}

// withDefaults fills every zero field of c.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.DialTimeout == 0 {
		out.DialTimeout = d.DialTimeout
	}
	if out.KeepAliveTimeout == 0 {
		out.KeepAliveTimeout = d.KeepAliveTimeout
	}
	if out.IdleConnTimeout == 0 {
		out.IdleConnTimeout = d.IdleConnTimeout
	}
	if out.ResponseHeaderTimeout == 0 {
		out.ResponseHeaderTimeout = d.ResponseHeaderTimeout
	}
	if out.MaxIdleConns == 0 {
		out.MaxIdleConns = d.MaxIdleConns
	}
	if out.MaxIdleConnsPerHost == 0 {
		out.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	return &out
}

// NewTransport builds a transport from config without touching the shared one.
func NewTransport(config *Config) *http.Transport {
	config = config.withDefaults()
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAliveTimeout,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ReadBufferSize:        config.ReadBufferSize,
		// Objects are often stored compressed; the source layer decodes them itself.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
}

// InitTransport replaces the shared transport. Idle connections of the previous
// one are closed.
func InitTransport(config *Config) {
	sharedTransportLock.Lock()
	defer sharedTransportLock.Unlock()

	if sharedTransport != nil {
		sharedTransport.CloseIdleConnections()
	}
	sharedTransport = NewTransport(config)
}

// GetTransport returns the shared transport, creating it with defaults on first use.
func GetTransport() *http.Transport {
	sharedTransportLock.RLock()
	t := sharedTransport
	sharedTransportLock.RUnlock()
	if t != nil {
		return t
	}

	sharedTransportLock.Lock()
	defer sharedTransportLock.Unlock()
	if sharedTransport == nil {
		sharedTransport = NewTransport(nil)
	}
	return sharedTransport
}
