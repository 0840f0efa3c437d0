package invoke

import (
	"go.uber.org/zap"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/errors"
)

// FromConfig builds the Invoker selected by invoke.mode.
func FromConfig(cfg *am.Config, log *zap.SugaredLogger) (Invoker, error) {
	switch cfg.Invoke.Mode {
	case "", am.InvokeModeEcho:
		return EchoInvoker{}, nil

	case am.InvokeModeCommand:
		router := NewRouter(nil)
		for target, line := range cfg.Invoke.Commands {
			inv, err := NewCommandInvoker(line, log)
			if err != nil {
				return nil, errors.Wrapf(err, "invoke.commands.%s", target)
			}
			router.Handle(target, inv)
		}
		return router, nil

	case am.InvokeModeHTTP:
		return NewHTTPInvoker(
			cfg.Invoke.HTTP.BaseURL,
			cfg.Invoke.HTTP.MaxRequestsPerMinute,
			cfg.InvokeTimeout(),
			log,
		), nil
	}
	return nil, errors.NewInvalidRequestError("unknown invoke mode %q", cfg.Invoke.Mode)
}
