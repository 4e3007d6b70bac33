package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"providence/internal/hostmsg"
)

// Supervisor owns the transport handle and its status. A dead handle is
// replaced on the next reconnect-timer fire, forever.
type Supervisor struct {
	factory HostConnFactory
	conn    HostConn
	status  ConnectionStatus
	timer   repeatingTimer
}

// NewSupervisor builds the first handle immediately.
func NewSupervisor(factory HostConnFactory, reconnectInterval time.Duration, now time.Time) *Supervisor {
	s := &Supervisor{
		factory: factory,
		status:  StatusConnecting,
		timer:   newRepeatingTimer(reconnectInterval, now),
	}
	s.conn = factory()
	metricHostClientsBuilt.Add(1)
	return s
}

func (s *Supervisor) Status() ConnectionStatus { return s.status }

// Conn is the current handle; it may be dead.
func (s *Supervisor) Conn() HostConn { return s.conn }

// Tick advances the reconnect timer and reports whether a new handle was
// constructed.
func (s *Supervisor) Tick(now time.Time) bool {
	if !s.timer.tick(now) || s.status != StatusDead {
		return false
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = s.factory()
	s.status = StatusConnecting
	metricHostClientsBuilt.Add(1)
	log.Info().Msg("host client reconstructed")
	return true
}

// HandleReport applies a transport report. It returns the previous status
// and, for IsDead, the request ids the transport gave up on.
func (s *Supervisor) HandleReport(report hostmsg.ConnectionReport) (ConnectionStatus, []hostmsg.RequestID) {
	prev := s.status
	s.status = statusForReport(report.Kind)
	if prev != s.status {
		log.Info().
			Str("report", report.Kind.String()).
			Str("from", prev.String()).
			Str("status", s.status.String()).
			Msg("host connection status changed")
	}
	if report.Kind == hostmsg.ReportIsDead {
		return prev, report.AbortedRequests
	}
	return prev, nil
}
