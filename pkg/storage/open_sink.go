package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// OpenSink opens every enabled sink in cfg and fans out to them. JSONL files
// go under outputDir.
func OpenSink(ctx context.Context, cfg config.SinkConfig, outputDir string, resume bool, log *logrus.Entry) (Sink, error) {
	var sinks []Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.JSONL.Enabled {
		jsonl, err := NewJSONLSink(outputDir, cfg.JSONL, resume, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, jsonl)
	}
	if cfg.Postgres.Enabled {
		pg, err := NewPostgresSink(ctx, cfg.Postgres, log)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if len(sinks) == 0 {
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "no sink enabled")
	}
	return NewMultiSink(sinks...), nil
}

