package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildSASLMechanism(t *testing.T) {
	Convey("TestBuildSASLMechanism", t, func() {
		Convey("未启用返回 nil", func() {
			m, err := buildSASLMechanism(&SASLConfig{Enabled: false, Mechanism: "PLAIN"})
			So(err, ShouldBeNil)
			So(m, ShouldBeNil)

			m, err = buildSASLMechanism(nil)
			So(err, ShouldBeNil)
			So(m, ShouldBeNil)
		})

		Convey("默认 PLAIN", func() {
			m, err := buildSASLMechanism(&SASLConfig{Enabled: true, Username: "u", Password: "p"})
			So(err, ShouldBeNil)
			So(m, ShouldHaveSameTypeAs, plain.Mechanism{})
			So(m.Name(), ShouldEqual, "PLAIN")
		})

		Convey("SCRAM", func() {
			m, err := buildSASLMechanism(&SASLConfig{Enabled: true, Mechanism: "SCRAM-SHA-512", Username: "u", Password: "p"})
			So(err, ShouldBeNil)
			So(m.Name(), ShouldEqual, "SCRAM-SHA-512")

			m, err = buildSASLMechanism(&SASLConfig{Enabled: true, Mechanism: "SCRAM-SHA-256", Username: "u", Password: "p"})
			So(err, ShouldBeNil)
			So(m.Name(), ShouldEqual, "SCRAM-SHA-256")
		})

		Convey("未知机制报错", func() {
			_, err := buildSASLMechanism(&SASLConfig{Enabled: true, Mechanism: "GSSAPI"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "GSSAPI")
		})
	})
}

func TestNewProducer(t *testing.T) {
	Convey("TestNewProducer", t, func() {
		Convey("缺少 brokers", func() {
			_, err := NewProducer(Config{Topic: "t"})
			So(err, ShouldNotBeNil)
		})

		Convey("缺少 topic", func() {
			_, err := NewProducer(Config{Brokers: []string{"localhost:9092"}})
			So(err, ShouldNotBeNil)
		})

		Convey("创建成功", func() {
			p, err := NewProducer(Config{
				Brokers: []string{"localhost:9092"},
				Topic:   "itops_zabbix_ticket",
				SASL:    &SASLConfig{Enabled: true, Username: "u", Password: "p"},
			})
			So(err, ShouldBeNil)

			w := p.(*Producer).writer
			So(w.Topic, ShouldEqual, "itops_zabbix_ticket")
			So(w.RequiredAcks, ShouldEqual, kafka.RequireOne)
			So(w.Async, ShouldBeFalse)
			So(p.Close(), ShouldBeNil)
		})

		Convey("未初始化的 writer", func() {
			p := &Producer{}
			err := p.Publish(context.Background(), "k", []byte("v"))
			So(err, ShouldNotBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}
