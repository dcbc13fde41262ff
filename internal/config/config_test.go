package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/shotlab/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, max(16, 4*runtime.NumCPU()))
			convey.So(cfg.WorkerCount, convey.ShouldBeGreaterThanOrEqualTo, cfg.MaxBatchSize/2)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.ConfidenceFloor, convey.ShouldEqual, 0.3)
			convey.So(cfg.SimilarityTopN, convey.ShouldEqual, 5)
			convey.So(cfg.VisionPreference, convey.ShouldEqual, "auto")
			convey.So(cfg.PrimaryTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.FallbackTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.KeypointTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Budgets(t *testing.T) {
	convey.Convey("Given provider timeouts of 10s, 30s and 30s", t, func() {
		cfg := config.New()
		cfg.KeypointTimeoutMS = 10_000
		cfg.PrimaryTimeoutMS = 30_000
		cfg.FallbackTimeoutMS = 30_000

		convey.Convey("Then one analysis may take all three in turn", func() {
			convey.So(cfg.AnalysisBudget(), convey.ShouldEqual, 70*time.Second)
		})

		convey.Convey("Then a batch the pool runs in one round fits one budget", func() {
			cfg.MaxBatchSize = 32
			cfg.WorkerCount = 32
			convey.So(cfg.BatchBudget(), convey.ShouldEqual, 70*time.Second)
		})

		convey.Convey("Then a batch larger than the pool scales by rounds", func() {
			cfg.MaxBatchSize = 32
			cfg.WorkerCount = 12
			convey.So(cfg.BatchBudget(), convey.ShouldEqual, 3*70*time.Second)
		})

		convey.Convey("Then a zero worker count does not divide by zero", func() {
			cfg.MaxBatchSize = 4
			cfg.WorkerCount = 0
			convey.So(cfg.BatchBudget(), convey.ShouldEqual, 4*70*time.Second)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid values", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":          func(c *config.Config) { c.Addr = "" },
			"zero workers":        func(c *config.Config) { c.WorkerCount = 0 },
			"zero queue":          func(c *config.Config) { c.QueueSize = 0 },
			"floor above one":     func(c *config.Config) { c.ConfidenceFloor = 1.5 },
			"top n above five":    func(c *config.Config) { c.SimilarityTopN = 6 },
			"zero primary":        func(c *config.Config) { c.PrimaryTimeoutMS = 0 },
			"zero keypoint":       func(c *config.Config) { c.KeypointTimeoutMS = 0 },
			"zero image bytes":    func(c *config.Config) { c.MaxImageBytes = 0 },
			"zero batch":          func(c *config.Config) { c.MaxBatchSize = 0 },
			"unknown hand":        func(c *config.Config) { c.DefaultShootingHand = "both" },
			"unknown preference":  func(c *config.Config) { c.VisionPreference = "cheapest" },
			"inverted angle band": func(c *config.Config) { c.AngleIdealRanges["elbow"] = config.Range{Min: 95, Max: 85} },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
