package display

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/trueleo/rusher/telemetry"
)

// RunWeb serves the message stream as a single Server-Sent Events
// connection on GET /events, plus GET /healthz, until ctx is cancelled or
// the stream closes. Only one concurrent /events client is supported — this
// is the minimal consumer spec.md §4.6 calls for, not a dashboard backend.
func RunWeb(ctx context.Context, addr string, messages <-chan telemetry.Message) error {
	app := newWebApp(messages)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
	}()

	return app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed))
}

func newWebApp(messages <-chan telemetry.Message) *iris.Application {
	app := iris.New()

	app.Get("/healthz", func(ictx iris.Context) {
		ictx.StatusCode(iris.StatusOK)
		_, _ = ictx.WriteString("ok")
	})

	app.Get("/events", func(ictx iris.Context) {
		ictx.ContentType("text/event-stream")
		ictx.Header("Cache-Control", "no-cache")
		ictx.Header("Connection", "keep-alive")

		reqCtx := ictx.Request().Context()
		for {
			select {
			case <-reqCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(ictx, "data: %s\n\n", data); err != nil {
					return
				}
				ictx.ResponseWriter().Flush()
				if msg.Kind == telemetry.KindEnd {
					return
				}
			}
		}
	})

	return app
}
