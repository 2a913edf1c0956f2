package timex

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestUnixBefore(t *testing.T) {
	Convey("TestUnixBefore", t, func() {
		base := time.Unix(1_700_000_000, 0)
		So(UnixBefore(base, time.Hour), ShouldEqual, 1_700_000_000-3600)
		So(UnixBefore(base, 0), ShouldEqual, 1_700_000_000)
		So(NowLocalTime().Location(), ShouldEqual, time.Local)
	})
}
