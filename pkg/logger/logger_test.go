package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/pkg/logger"
)

var _ = Describe("Logger", func() {
	var (
		ctx context.Context
		buf *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		buf = &bytes.Buffer{}
	})

	Describe("New", func() {
		DescribeTable("respects the configured level",
			func(level string, enabled, disabled slog.Level) {
				log := logger.New(level, false, "dev", buf)
				Expect(log.Enabled(ctx, enabled)).To(BeTrue())
				Expect(log.Enabled(ctx, disabled)).To(BeFalse())
			},
			Entry("info", "info", slog.LevelInfo, slog.LevelDebug),
			Entry("debug", "debug", slog.LevelDebug, slog.LevelDebug-1),
			Entry("warn", "warn", slog.LevelWarn, slog.LevelInfo),
			Entry("error", "error", slog.LevelError, slog.LevelWarn),
			Entry("invalid falls back to info", "invalid", slog.LevelInfo, slog.LevelDebug),
		)

		It("should write JSON in prod", func() {
			log := logger.New("info", false, "prod", buf)
			log.Info("node marked unhealthy", slog.String("node", "localhost:8108"))

			var record map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
			Expect(record["environment"]).To(Equal("prod"))
			Expect(record["node"]).To(Equal("localhost:8108"))
		})

		It("should write text outside prod", func() {
			log := logger.New("info", false, "dev", buf)
			log.Info("hello")
			Expect(buf.String()).To(ContainSubstring("environment=dev"))
			Expect(buf.String()).To(ContainSubstring("msg=hello"))
		})
	})

	Describe("FromConfig", func() {
		It("should use the config level and environment", func() {
			cfg := &config.Config{
				Environment: config.EnvStaging,
				Logging:     config.LoggingConfig{Level: config.LogLevelWarn},
			}
			log := logger.FromConfig(cfg, buf)
			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeFalse())
			log.Warn("retrying")
			Expect(buf.String()).To(ContainSubstring("environment=staging"))
		})
	})

	Describe("Discard", func() {
		It("should drop every record", func() {
			log := logger.Discard()
			Expect(log.Enabled(ctx, slog.LevelError)).To(BeFalse())
		})
	})
})
