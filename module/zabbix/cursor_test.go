package zabbix

import (
	"context"
	"testing"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCursor(t *testing.T) {
	Convey("TestCursor", t, func() {
		records := []core.Record{{"id": "1"}, {"id": "gone"}, {"id": "2"}, {"id": "bad"}, {"id": "3"}}
		built := 0
		build := func(_ context.Context, rec core.Record) (string, error) {
			built++
			switch id := rec["id"].(string); id {
			case "gone":
				return "", notFound("host.get", "hostid", id)
			case "bad":
				return "", remoteFailure
			default:
				return id, nil
			}
		}

		Convey("跳过不存在的对象，遇到其他错误停止", func() {
			c := newCursor(records, build)
			So(c.Total(), ShouldEqual, 5)
			got, err := c.All(ctx)
			So(got, ShouldResemble, []string{"1", "2"})
			So(errors.Is(err, remoteFailure), ShouldBeTrue)
			So(built, ShouldEqual, 4)

			So(c.Next(ctx), ShouldBeFalse)
			So(built, ShouldEqual, 4)
		})

		Convey("实体在 Next 时才构造", func() {
			c := newCursor(records[:1], build)
			So(built, ShouldEqual, 0)
			So(c.Next(ctx), ShouldBeTrue)
			So(c.Value(), ShouldEqual, "1")
			So(c.Next(ctx), ShouldBeFalse)
			So(c.Err(), ShouldBeNil)
		})

		Convey("上限保护", func() {
			c := guardedCursor("host.get", 5, records, build)
			So(c.Exceeded(), ShouldBeTrue)
			So(c.Next(ctx), ShouldBeFalse)
			So(built, ShouldEqual, 0)

			c = guardedCursor("host.get", 6, records[:1], build)
			So(c.Exceeded(), ShouldBeFalse)
			So(c.Next(ctx), ShouldBeTrue)

			c = guardedCursor("host.get", 0, records, build)
			So(c.Exceeded(), ShouldBeFalse)
		})
	})
}
