package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryCache(t *testing.T) {
	Convey("TestMemoryCache", t, func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := NewMemoryCache().(*MemoryCache)
		c.now = func() time.Time { return now }
		ctx := context.Background()

		Convey("Set 后可以 Get", func() {
			So(c.Set(ctx, "k", "v", 0), ShouldBeNil)
			v, err := c.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "v")
		})

		Convey("过期后不可见", func() {
			So(c.Set(ctx, "k", "v", time.Minute), ShouldBeNil)
			ok, _ := c.Exists(ctx, "k")
			So(ok, ShouldBeTrue)

			now = now.Add(time.Minute)
			ok, _ = c.Exists(ctx, "k")
			So(ok, ShouldBeFalse)
			_, err := c.Get(ctx, "k")
			So(errors.Is(err, ErrKeyNotFound), ShouldBeTrue)
		})

		Convey("Del 删除多个键", func() {
			_ = c.Set(ctx, "a", "1", 0)
			_ = c.Set(ctx, "b", "2", 0)
			So(c.Del(ctx, "a", "b"), ShouldBeNil)
			ok, _ := c.Exists(ctx, "a")
			So(ok, ShouldBeFalse)
			So(c.Close(), ShouldBeNil)
		})
	})
}
