package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/datacheck/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := config.New()

		Convey("Then the aggregation weights cover the four dimensions", func() {
			So(cfg.QualityWeights[config.WeightCompleteness], ShouldEqual, 0.3)
			So(cfg.QualityWeights[config.WeightConsistency], ShouldEqual, 0.3)
			So(cfg.QualityWeights[config.WeightAccuracy], ShouldEqual, 0.2)
			So(cfg.QualityWeights[config.WeightUniqueness], ShouldEqual, 0.2)
		})

		Convey("Then the ensemble defaults match the documented choices", func() {
			So(cfg.Contamination, ShouldEqual, 0.1)
			So(cfg.AnomalyQuorum, ShouldEqual, 2)
			So(cfg.AnomalyMinRows, ShouldEqual, 10)
		})

		Convey("Then it validates cleanly", func() {
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a config with bad values", t, func() {
		Convey("When the weights do not sum to 1", func() {
			cfg := config.New()
			cfg.QualityWeights[config.WeightAccuracy] = 0.5

			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When contamination is out of range", func() {
			cfg := config.New()
			cfg.Contamination = 0.9

			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When the quorum is zero", func() {
			cfg := config.New()
			cfg.AnomalyQuorum = 0

			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When the addr is empty", func() {
			cfg := config.New()
			cfg.Addr = ""

			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}

func TestLoadFromEnv(t *testing.T) {
	Convey("Given env overrides", t, func() {
		So(os.Setenv("DATACHECK_ADDR", ":7070"), ShouldBeNil)
		So(os.Setenv("DATACHECK_LLM_MODEL", "llama3:8b"), ShouldBeNil)
		defer func() {
			_ = os.Unsetenv("DATACHECK_ADDR")
			_ = os.Unsetenv("DATACHECK_LLM_MODEL")
		}()

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then the env values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.LLMModel, ShouldEqual, "llama3:8b")
				// Untouched fields keep their defaults.
				So(cfg.Contamination, ShouldEqual, 0.1)
			})
		})
	})
}
