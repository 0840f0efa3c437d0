package invoke

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/internal/util"
	"github.com/teranos/tempo/logger"
)

// maxStderrDetail bounds the stderr excerpt attached to a failed command.
const maxStderrDetail = 2000

// CommandInvoker runs a local command per call. The payload is written to
// stdin and stdout becomes the result. TEMPO_TARGET carries the target name.
type CommandInvoker struct {
	argv   []string
	logger *zap.SugaredLogger
}

// NewCommandInvoker parses commandLine with shell quoting rules.
func NewCommandInvoker(commandLine string, log *zap.SugaredLogger) (*CommandInvoker, error) {
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid command line %q", commandLine)
	}
	if len(argv) == 0 {
		return nil, errors.New("command line is empty")
	}
	if log == nil {
		log = logger.Logger
	}
	return &CommandInvoker{argv: argv, logger: log}, nil
}

// Argv returns the parsed command.
func (c *CommandInvoker) Argv() []string {
	return append([]string(nil), c.argv...)
}

// Invoke runs the command and returns its trimmed stdout.
func (c *CommandInvoker) Invoke(ctx context.Context, target, payload string) (string, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(payload)
	cmd.Env = append(os.Environ(), "TEMPO_TARGET="+target)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debugw("Running collaborator command",
		logger.FieldTarget, target,
		"command", c.argv[0])

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrapf(ctxErr, "command %s interrupted", c.argv[0])
		}
		wrapped := errors.Wrapf(err, "command %s failed", c.argv[0])
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			wrapped = errors.WithDetail(wrapped, util.Truncate(msg, maxStderrDetail))
		}
		return "", wrapped
	}
	return strings.TrimSpace(stdout.String()), nil
}
