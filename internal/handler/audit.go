package handler

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ims-api/internal/auth"
	"github.com/iliyamo/ims-api/internal/queue"
)

// Auditor stamps audit events with the request's actor and hands them to a
// publisher.  Publishing failures are logged and never fail the request.
type Auditor struct {
	pub queue.Publisher
	now func() time.Time
}

// NewAuditor returns an Auditor; a nil publisher disables auditing.
func NewAuditor(pub queue.Publisher) *Auditor {
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	return &Auditor{pub: pub, now: time.Now}
}

func (a *Auditor) record(c echo.Context, ev queue.AuditEvent) {
	if a == nil {
		return
	}
	if p := auth.CurrentUser(c.Request().Context()); p != nil && ev.ActorID == 0 {
		ev.ActorID = p.User.ID
		ev.Actor = p.User.Username
	}
	ev.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	ev.RemoteIP = c.RealIP()
	ev.At = a.now().UTC()
	if err := a.pub.Publish(c.Request().Context(), ev); err != nil {
		log.Warn().Err(err).Str("action", ev.Action).Msg("audit event not published")
	}
}
