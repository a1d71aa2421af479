package remedy

// Observer receives engine progress events. The engine calls every method
// unconditionally; implementations that do not care are no-ops. Observers
// must not influence control flow.
type Observer interface {
	BatchStarted(detected int, dryRun bool)
	FindingApplied(f Finding, out Outcome, err error)
	BatchFinished(res *Result)
}

// NopObserver is an Observer that discards all events.
type NopObserver struct{}

func (NopObserver) BatchStarted(int, bool) {}

func (NopObserver) FindingApplied(Finding, Outcome, error) {}

func (NopObserver) BatchFinished(*Result) {}
