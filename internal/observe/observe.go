// Package observe carries outcome notifications from the engagement, earnings
// and rendering paths to whatever records them (prometheus, the event log).
package observe

// Observer receives outcome notifications. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ProviderResult(provider string, ok bool)
	FallbackInvoked()
	EngagementChecked(engaged bool)
	EarningsFetched(err error)
	RenderFailed()
}

type Nop struct{}

func (Nop) ProviderResult(string, bool) {}
func (Nop) FallbackInvoked()            {}
func (Nop) EngagementChecked(bool)      {}
func (Nop) EarningsFetched(error)       {}
func (Nop) RenderFailed()               {}

// Multi fans out to every observer in order.
type Multi []Observer

func (m Multi) ProviderResult(provider string, ok bool) {
	for _, o := range m {
		o.ProviderResult(provider, ok)
	}
}

func (m Multi) FallbackInvoked() {
	for _, o := range m {
		o.FallbackInvoked()
	}
}

func (m Multi) EngagementChecked(engaged bool) {
	for _, o := range m {
		o.EngagementChecked(engaged)
	}
}

func (m Multi) EarningsFetched(err error) {
	for _, o := range m {
		o.EarningsFetched(err)
	}
}

func (m Multi) RenderFailed() {
	for _, o := range m {
		o.RenderFailed()
	}
}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}
