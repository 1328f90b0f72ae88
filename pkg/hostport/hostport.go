// Package hostport provides ozzo-validation rules for host:port strings.
package hostport

import (
	"net"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	// Listen accepts an address a server can bind. The host may be empty,
	// and port 0 asks the kernel for a free port.
	Listen = validation.By(func(value interface{}) error {
		return validate(value, false)
	})

	// Dial accepts an address a client can connect to: the port must be in
	// 1..65535.
	Dial = validation.By(func(value interface{}) error {
		return validate(value, true)
	})
)

func validate(value interface{}, dial bool) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if dial {
		if err := is.Port.Validate(port); err != nil {
			return validation.NewError("validation_invalid_port", "invalid port")
		}
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return validation.NewError("validation_invalid_port", "invalid port")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
