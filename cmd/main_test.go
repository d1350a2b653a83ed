package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/datacheck/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func writeSampleCSV(t *testing.T) string {
	t.Helper()
	var b bytes.Buffer
	b.WriteString("id,amount,city\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%d,%d,city%d\n", i, 100+i, i%3)
	}
	path := filepath.Join(t.TempDir(), "sample.csv")
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigurationLoading(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("DATACHECK_ADDR", ":8080")
		_ = os.Setenv("DATACHECK_QUEUE_SIZE", "1000")
		_ = os.Setenv("DATACHECK_WORKER_COUNT", "4")
		defer func() {
			_ = os.Unsetenv("DATACHECK_ADDR")
			_ = os.Unsetenv("DATACHECK_QUEUE_SIZE")
			_ = os.Unsetenv("DATACHECK_WORKER_COUNT")
		}()

		convey.Convey("Then configuration should be loadable", func() {
			ctx := context.Background()
			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg, convey.ShouldNotBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.RecommendationQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})
}

func TestScanCommand(t *testing.T) {
	convey.Convey("Given a local CSV file", t, func() {
		path := writeSampleCSV(t)

		convey.Convey("When the scan command runs against it", func() {
			var out bytes.Buffer
			cmd := newScanCmd()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs([]string{path})

			err := cmd.ExecuteContext(context.Background())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then it prints a complete JSON report", func() {
				var result scanResult
				convey.So(json.Unmarshal(out.Bytes(), &result), convey.ShouldBeNil)
				convey.So(result.Dataset, convey.ShouldEqual, "sample.csv")
				convey.So(result.Rows, convey.ShouldEqual, 30)
				convey.So(result.Columns, convey.ShouldEqual, 3)
				convey.So(result.Quality, convey.ShouldNotBeNil)
				convey.So(result.Quality.OverallScore, convey.ShouldBeBetweenOrEqual, 0, 100)
				convey.So(result.Anomalies, convey.ShouldNotBeNil)
				convey.So(result.Anomalies.Applicable, convey.ShouldBeTrue)
				convey.So(result.Recommendations, convey.ShouldNotBeNil)
				convey.So(len(result.Recommendations.Items), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the file does not exist", func() {
			cmd := newScanCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.csv")})

			convey.So(cmd.ExecuteContext(context.Background()), convey.ShouldNotBeNil)
		})
	})
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it exposes the scan subcommand", func() {
			names := make([]string, 0)
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "scan")
		})
	})
}
