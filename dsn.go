// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2016 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Config holds everything needed to dial and authenticate a connection,
// as produced by ParseDSN or built directly by the caller.
type Config struct {
	User   string
	Passwd string
	Net    string // "tcp" or "unix"
	Addr   string // host:port for tcp, socket path for unix
	DBName string

	InitCommand      string
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	LocalInfile      bool
	Charset          string
	Reconnect        bool
	MaxAllowedPacket int
}

// ParseDSN parses a connection URL of the form
//
//	mysql://[user[:password]@]host[:port]/[db][?socket=PATH&opt=val...]
//
// into a Config. An absent or "localhost" host selects a Unix-domain
// socket transport (default path "/tmp/mysql.sock", overridable with
// the "socket" query parameter); any other host selects TCP, defaulting
// to port 3306. Unrecognised query parameters are a configuration error.
func ParseDSN(dsn string) (*Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: invalid DSN: %w", err)
	}
	if u.Scheme != "" && u.Scheme != "mysql" {
		return nil, fmt.Errorf("mysql: invalid DSN: unsupported scheme %q", u.Scheme)
	}

	cfg := &Config{
		Charset:          "utf8mb4",
		MaxAllowedPacket: defaultMaxAllowedPacket,
	}

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	host := u.Hostname()
	port := u.Port()

	if len(u.Path) > 1 {
		cfg.DBName = u.Path[1:]
	}

	query := u.Query()
	socket := query.Get("socket")
	query.Del("socket")

	if host == "" || host == "localhost" {
		cfg.Net = "unix"
		cfg.Addr = "/tmp/mysql.sock"
		if socket != "" {
			cfg.Addr = socket
		}
	} else {
		cfg.Net = "tcp"
		if port == "" {
			port = "3306"
		}
		cfg.Addr = host + ":" + port
	}

	for key, vals := range query {
		if len(vals) == 0 {
			continue
		}
		if err := cfg.applyOption(key, vals[0]); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) applyOption(key, value string) error {
	switch key {
	case "init_command":
		cfg.InitCommand = value

	case "connect_timeout":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("mysql: invalid connect_timeout %q: %w", value, err)
		}
		cfg.ConnectTimeout = time.Duration(secs) * time.Second

	case "read_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("mysql: invalid read_timeout %q: %w", value, err)
		}
		cfg.ReadTimeout = d

	case "write_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("mysql: invalid write_timeout %q: %w", value, err)
		}
		cfg.WriteTimeout = d

	case "local_infile":
		b, ok := parseBoolOption(value)
		if !ok {
			return fmt.Errorf("mysql: invalid bool value for local_infile: %q", value)
		}
		cfg.LocalInfile = b

	case "charset":
		cfg.Charset = value

	case "reconnect":
		b, ok := parseBoolOption(value)
		if !ok {
			return fmt.Errorf("mysql: invalid bool value for reconnect: %q", value)
		}
		cfg.Reconnect = b

	case "max_allowed_packet":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("mysql: invalid max_allowed_packet %q: %w", value, err)
		}
		cfg.MaxAllowedPacket = n

	case "ssl", "compress", "named_pipe":
		return fmt.Errorf("%w: %s", ErrUnsupportedOption, key)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}
	return nil
}

func parseBoolOption(value string) (b bool, ok bool) {
	switch value {
	case "1", "true", "TRUE", "True":
		return true, true
	case "0", "false", "FALSE", "False":
		return false, true
	}
	return false, false
}
