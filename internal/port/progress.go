package port

// ProgressSink receives incremental progress updates from a long-running
// operation. Percent values are checkpoints, not byte counts; callers must
// tolerate repeated values but never receive a decreasing sequence from a
// well-behaved producer.
type ProgressSink interface {
	Report(percent int, message string)
}

// SinkFunc adapts a plain function to the ProgressSink interface.
type SinkFunc func(percent int, message string)

// Report implements ProgressSink.
func (f SinkFunc) Report(percent int, message string) { f(percent, message) }

// NopSink discards all updates.
var NopSink ProgressSink = SinkFunc(func(int, string) {})

type fanoutSink []ProgressSink

func (f fanoutSink) Report(percent int, message string) {
	for _, s := range f {
		s.Report(percent, message)
	}
}

// Fanout returns a sink that forwards every update to each of sinks in order.
func Fanout(sinks ...ProgressSink) ProgressSink {
	return fanoutSink(sinks)
}
