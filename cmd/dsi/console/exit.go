package console

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi/exposure"
	"github.com/mklimuk/dsi/transport"
)

// Exit codes reported by the dsi command.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitTransport = 3
	ExitAborted   = 4
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// ExitFor picks the exit code matching the error class.
func ExitFor(err error, msg string) cli.ExitCoder {
	code := ExitFailure
	switch {
	case errors.Is(err, exposure.ErrAborted):
		code = ExitAborted
	case transport.IsTransportError(err):
		code = ExitTransport
	}
	return Exit(code, "%s: %s", msg, Red(err))
}
