package logging

import (
	"io"
	"os"
	"sync"

	"zcoin/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set, records go
// to stdout and to a size-capped file.
func Init(cfg config.LogConfig) error {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, fw)
	}
	setWriter(out)

	console := out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}
	zerolog.SetGlobalLevel(cfg.ZerologLevel())
	logger := zerolog.New(console).With().Timestamp().Str("service", cfg.Service).Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer is the raw sink used by non-zerolog loggers (httplog's slog handler).
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

func setWriter(w io.Writer) {
	sinkMu.Lock()
	sink = w
	sinkMu.Unlock()
}
