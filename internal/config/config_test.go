package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/okian/sift/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.ShardCount, convey.ShouldEqual, 8)
			convey.So(cfg.GatewayModel, convey.ShouldEqual, "gpt-4o-mini")
			convey.So(cfg.GatewayTimeout, convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.LLMStub, convey.ShouldBeFalse)
		})
	})
}
