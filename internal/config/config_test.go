package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/diarisk/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ModelDir, convey.ShouldEqual, "models")
			convey.So(cfg.LoadTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.BatchWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.BatchQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.MaxBatchSize, convey.ShouldEqual, 1000)
			convey.So(cfg.HistoryPath, convey.ShouldBeEmpty)
			convey.So(cfg.HistoryLimit, convey.ShouldEqual, 10_000)
			convey.So(cfg.MaxHistoryLimit, convey.ShouldEqual, 500)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with unusable settings", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"empty model dir", func(c *config.Config) { c.ModelDir = "" }},
			{"zero load timeout", func(c *config.Config) { c.LoadTimeoutMS = 0 }},
			{"zero history limit", func(c *config.Config) { c.HistoryLimit = 0 }},
			{"negative workers", func(c *config.Config) { c.BatchWorkers = -1 }},
			{"zero queue", func(c *config.Config) { c.BatchQueueSize = 0 }},
			{"zero batch size", func(c *config.Config) { c.MaxBatchSize = 0 }},
			{"batch larger than queue", func(c *config.Config) { c.MaxBatchSize = c.BatchQueueSize + 1 }},
			{"zero history cap", func(c *config.Config) { c.MaxHistoryLimit = 0 }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
		}
		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" should be rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
