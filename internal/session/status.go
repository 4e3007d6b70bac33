package session

import "providence/internal/hostmsg"

type ConnectionStatus int

const (
	StatusConnecting ConnectionStatus = iota
	StatusConnected
	StatusDead
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// statusForReport maps a transport report onto the status it implies.
func statusForReport(kind hostmsg.ReportKind) ConnectionStatus {
	switch kind {
	case hostmsg.ReportConnected:
		return StatusConnected
	case hostmsg.ReportIsDead:
		return StatusDead
	default:
		return StatusConnecting
	}
}
