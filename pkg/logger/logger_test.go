package logger_test

import (
	"bytes"
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/qr-document/pkg/logger"
)

var _ = Describe("Logger", func() {
	It("should write JSON at or above the configured level", func() {
		var buf bytes.Buffer
		lg := logger.Setup(&buf, "warn", "json")

		lg.Info("hidden")
		lg.Warn("shown", "session_id", "s-1")

		var line map[string]interface{}
		Expect(json.Unmarshal(buf.Bytes(), &line)).To(Succeed())
		Expect(line["msg"]).To(Equal("shown"))
		Expect(line["session_id"]).To(Equal("s-1"))
		Expect(logger.LoggerWrapper()).To(BeIdenticalTo(lg))
	})

	It("should carry attributes through the context", func() {
		var buf bytes.Buffer
		base := logger.Setup(&buf, "debug", "text")

		ctx := logger.Into(context.Background(), base)
		ctx = logger.With(ctx, "request_id", "req-7")
		logger.From(ctx).Info("handled")

		Expect(buf.String()).To(ContainSubstring("request_id=req-7"))
		Expect(logger.From(context.Background())).To(BeIdenticalTo(base))
	})
})
