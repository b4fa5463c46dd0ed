package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/airscore/internal/config"
	"github.com/okian/airscore/internal/domain/scoring"
	"github.com/okian/airscore/internal/domain/types"
	"github.com/okian/airscore/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const sampleBatch = `{
	"pic_md5": "5d41402abc4b2a76b9719d911017c592",
	"provider_id": 7,
	"provider_name": "JulangCloud",
	"test_time": "2024-10-09 21:07:14",
	"test_record_list": [
		{"节点名称": "台湾 - 01", "平均速度": "39.69MB", "最高速度": "77.75MB", "TLS RTT": "61ms", "HTTPS延迟": "493ms"},
		{"节点名称": "香港 - 02", "平均速度": "512KB", "最高速度": "2MB", "TLS RTT": "180ms", "HTTPS延迟": "1200ms"}
	]
}`

func TestConfigToEngine(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		t.Setenv("AIRSCORE_ADDR", ":8080")
		t.Setenv("AIRSCORE_QUEUE_SIZE", "1000")
		t.Setenv("AIRSCORE_SCORING_MODE", "decay")
		t.Setenv("AIRSCORE_UNSCORED_POLICY", "omit")

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the engine follows it", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)

			engine, err := newEngine(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(engine.Mode(), convey.ShouldEqual, scoring.ModeDecay)
			convey.So(engine.Policy(), convey.ShouldEqual, scoring.Omit)
		})
	})

	convey.Convey("Given a configuration with an unknown mode", t, func() {
		cfg := config.New()
		cfg.ScoringMode = "vibes"

		convey.Convey("Then no engine is built", func() {
			_, err := newEngine(cfg)
			convey.So(err, convey.ShouldNotBeNil)

			_, err = newService(cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestEndToEnd(t *testing.T) {
	convey.Convey("Given the service behind its HTTP routes", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg := config.New()
		cfg.WorkerCount = 2
		cfg.RefreshIntervalMS = 0
		cfg.WindowDays = 0

		svc, err := newService(cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newMux(ctx, cfg, svc))
		defer srv.Close()

		post := func(path, body string) *http.Response {
			resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		convey.Convey("When a batch is posted twice", func() {
			first := post("/batches", sampleBatch)
			_ = first.Body.Close()
			second := post("/batches", sampleBatch)
			_ = second.Body.Close()

			convey.Convey("Then it is accepted once", func() {
				convey.So(first.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				convey.So(second.StatusCode, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then a rescore ranks its nodes", func() {
				ingested := false
				for range 500 {
					if svc.GetStats()["records"] == 2 {
						ingested = true
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				convey.So(ingested, convey.ShouldBeTrue)

				resp := post("/rescore", "")
				var summary types.RunSummary
				convey.So(json.NewDecoder(resp.Body).Decode(&summary), convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(summary.Nodes, convey.ShouldEqual, 2)

				resp, err := http.Get(srv.URL + "/ranking?nodes=true")
				convey.So(err, convey.ShouldBeNil)
				var entries []types.Entry
				convey.So(json.NewDecoder(resp.Body).Decode(&entries), convey.ShouldBeNil)
				_ = resp.Body.Close()

				convey.So(len(entries), convey.ShouldEqual, 1)
				convey.So(entries[0].ProviderID, convey.ShouldEqual, 7)
				convey.So(entries[0].NodeCount, convey.ShouldEqual, 2)
				convey.So(entries[0].Nodes[0].NodeID, convey.ShouldEqual, "7:台湾 - 01")
				convey.So(entries[0].Nodes[0].Score, convey.ShouldEqual, 1.0)
				convey.So(entries[0].Nodes[1].Score, convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When the documentation is requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()

			convey.Convey("Then it is served", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("metrics updater did not stop")
			}
		})
	})
}
