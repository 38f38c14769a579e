package events

// Type tags what an Event describes. The bus routes on Type alone.
type Type string

const (
	// TypeSample is a periodic memory reading from the sampler.
	TypeSample Type = "SAMPLE"
	// TypeRAMHigh opens a breach streak.
	TypeRAMHigh Type = "RAM_HIGH"
	// TypeRAMNormal closes a breach streak.
	TypeRAMNormal Type = "RAM_NORMAL"
	// TypeSendEmail fires once per streak after the email delay.
	TypeSendEmail Type = "SEND_EMAIL"
	// TypeRestart fires once per streak after the restart delay.
	TypeRestart Type = "RESTART"
)

// EscalationTypes lists the types derived by the escalation policy, in
// the order a single streak can produce them.
var EscalationTypes = []Type{TypeRAMHigh, TypeSendEmail, TypeRestart, TypeRAMNormal}

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	switch t {
	case TypeSample, TypeRAMHigh, TypeRAMNormal, TypeSendEmail, TypeRestart:
		return true
	default:
		return false
	}
}

// IsEscalation reports whether t carries an Escalation payload.
func (t Type) IsEscalation() bool {
	return t.Valid() && t != TypeSample
}

func (t Type) String() string {
	return string(t)
}
