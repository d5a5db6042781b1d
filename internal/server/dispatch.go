package server

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tyrowin/classboard/internal/protocol"
)

// dispatch parses one inbound line and applies it to the room. Malformed lines
// and lines without effect are dropped without telling the client.
func (c *Client) dispatch(line string) {
	msg, err := protocol.Parse(line)
	if err != nil {
		c.srv.metrics.InboundDiscarded("malformed")
		c.readLogger.Debug("discarding inbound line", "error", err)
		return
	}

	_, span := c.srv.tracer.Start(c.ctx, "classboard."+msg.Kind().String(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("classboard.conn_id", c.id),
			attribute.String("classboard.transport", c.transport),
		))
	defer span.End()

	applied := c.srv.room.Handle(c, msg)
	span.SetAttributes(attribute.Bool("classboard.applied", applied))
	if !applied {
		c.srv.metrics.InboundDiscarded("no_effect")
		c.readLogger.Debug("inbound message had no effect", "kind", msg.Kind().String())
		return
	}
	span.SetStatus(codes.Ok, "")
}
