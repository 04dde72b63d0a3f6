package installer

// WizardState names a phase of the setup flow. The states mirror the classic
// installer wizard pages; transitions are pure so the flow can be tested
// without running any phase.
type WizardState int

const (
	StateWelcome WizardState = iota
	StateLicense
	StateLocation
	StateMinionConfig
	StateProgress
	StateFinish
	StateDone
)

func (s WizardState) String() string {
	switch s {
	case StateWelcome:
		return "welcome"
	case StateLicense:
		return "license"
	case StateLocation:
		return "location"
	case StateMinionConfig:
		return "minion-config"
	case StateProgress:
		return "progress"
	case StateFinish:
		return "finish"
	default:
		return "done"
	}
}

// NextState returns the state following s. Upgrades of an existing
// installation skip the location phase: the install directory is fixed by
// the prior install and must not be re-picked.
func NextState(s WizardState, existingInstallation bool) WizardState {
	switch s {
	case StateWelcome:
		return StateLicense
	case StateLicense:
		if existingInstallation {
			return StateMinionConfig
		}
		return StateLocation
	case StateLocation:
		return StateMinionConfig
	case StateMinionConfig:
		return StateProgress
	case StateProgress:
		return StateFinish
	default:
		return StateDone
	}
}
