package connection

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
)

// accessLog is a structured, high-volume log of per-connection and
// per-request events, kept independent from the process lifecycle log
// (log/slog, configured in cmd/dispatchd) so a noisy access stream
// never drowns out startup/shutdown/error diagnostics.
var accessLog = zerolog.New(os.Stdout).With().Timestamp().Str("stream", "access").Logger()

// SetAccessLogOutput redirects the access log away from stdout;
// cmd/dispatchd points it at the rotating writer's "access" stream.
func SetAccessLogOutput(w io.Writer) {
	accessLog = zerolog.New(w).With().Timestamp().Str("stream", "access").Logger()
}

func logConnectionOpened(addr string) {
	accessLog.Info().Str("addr", addr).Msg("connection opened")
}

func logConnectionClosed(addr, cuid string) {
	accessLog.Info().Str("addr", addr).Str("cuid", cuid).Msg("connection closed")
}

func logRequestCompleted(addr, cuid string, target protocol.CommandTarget, answer protocol.AnswerTarget) {
	accessLog.Info().
		Str("addr", addr).
		Str("cuid", cuid).
		Str("target", target.String()).
		Str("answer", answer.String()).
		Msg("request completed")
}

// LogConfigReloaded records a live config reload on the access stream,
// so a read of the access log shows capacity changes alongside the
// connection traffic they affect.
func LogConfigReloaded(workers, commandBufferSize int) {
	accessLog.Info().
		Int("workers", workers).
		Int("command_buffer", commandBufferSize).
		Msg("config reloaded")
}
