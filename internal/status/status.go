// Package status replaces free-form status strings with a small enum
// of status kinds plus a bounded details payload; callers format the
// user-visible text.
package status

import "fmt"

const maxDetailLen = 64

// Kind enumerates every status a protocol handler can report.
type Kind uint8

const (
	Stopped Kind = iota
	Running
	Receiving
	Paused
	FailedToOpen
	BindFallback
	Conflict
	PacketError
)

func (k Kind) String() string {
	switch k {
	case Stopped:
		return "STOPPED"
	case Running:
		return "RUNNING"
	case Receiving:
		return "RECEIVING"
	case Paused:
		return "PAUSED"
	case FailedToOpen:
		return "FAILED TO OPEN"
	case BindFallback:
		return "BIND FALLBACK"
	case Conflict:
		return "CONFLICT"
	case PacketError:
		return "PACKET ERROR"
	default:
		return "UNKNOWN"
	}
}

// Status pairs a Kind with a short, bounded detail string — a device
// name, an error reason, the owner of a device conflict.
type Status struct {
	Kind   Kind
	Detail string
}

// New returns a Status with Detail truncated to a bounded length.
func New(kind Kind, detail string) Status {
	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen]
	}
	return Status{Kind: kind, Detail: detail}
}

// Text formats the status the way the UI should display it.
func (s Status) Text() string {
	switch s.Kind {
	case Conflict:
		return fmt.Sprintf("CONFLICT: same device as %s", s.Detail)
	case FailedToOpen:
		if s.Detail != "" {
			return fmt.Sprintf("FAILED TO OPEN: %s", s.Detail)
		}
		return "FAILED TO OPEN"
	case BindFallback:
		return fmt.Sprintf("BIND FALLBACK: %s", s.Detail)
	case PacketError:
		if s.Detail != "" {
			return fmt.Sprintf("PACKET ERROR: %s", s.Detail)
		}
		return "PACKET ERROR"
	default:
		if s.Detail != "" {
			return fmt.Sprintf("%s: %s", s.Kind, s.Detail)
		}
		return s.Kind.String()
	}
}
