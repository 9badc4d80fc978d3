package xsession

// Recorder observes container lifecycle outcomes. The metrics package
// provides a Prometheus implementation.
type Recorder interface {
	// ObserveLoad is called at the end of every Load with the resulting state.
	ObserveLoad(state State)
	// ObserveSave is called after every attempted store write.
	ObserveSave(err error)
	// ObserveKill is called after every attempted store delete.
	ObserveKill(err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(State) {}
func (nopRecorder) ObserveSave(error) {}
func (nopRecorder) ObserveKill(error) {}
