package progress

// Event is the closed set of messages the privileged helper reports over its
// stdout stream. Consumers switch on the concrete type; the unexported
// method keeps the set closed.
type Event interface {
	progressEvent()
}

// Ready announces the write phase with the total byte count to transfer.
type Ready struct {
	TotalBytes uint64
}

// WriteProgress reports cumulative bytes written and current throughput.
type WriteProgress struct {
	BytesDone      uint64
	BytesPerSecond uint64
}

// WriteDone marks the end of the write phase after the device sync.
type WriteDone struct{}

// VerifyReady announces the read-back verification phase.
type VerifyReady struct {
	TotalBytes uint64
}

// VerifyProgress reports cumulative bytes verified and current throughput.
type VerifyProgress struct {
	BytesDone      uint64
	BytesPerSecond uint64
}

// VerifyDone marks full success: every byte of the target matched the source.
type VerifyDone struct{}

// Metrics carries the final summary emitted after VerifyDone.
type Metrics struct {
	ElapsedSeconds float64
	AvgMBps        float64
	TotalBytes     uint64
	Version        string
}

// Failure carries the free-text message from an ERROR line. The job is over
// once this arrives; the target's state is unknown.
type Failure struct {
	Message string
}

func (Ready) progressEvent()          {}
func (WriteProgress) progressEvent()  {}
func (WriteDone) progressEvent()      {}
func (VerifyReady) progressEvent()    {}
func (VerifyProgress) progressEvent() {}
func (VerifyDone) progressEvent()     {}
func (Metrics) progressEvent()        {}
func (Failure) progressEvent()        {}
