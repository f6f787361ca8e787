package wire

import "time"

// Timestamp is a (seconds, nanoseconds)-since-epoch pair. Unlike
// time.Time it round-trips through JSON as two plain integers and makes
// no monotonicity claim: the source clock can step.
type Timestamp struct {
	Seconds     uint64 `json:"seconds"`
	Nanoseconds uint32 `json:"nanoseconds"`
}

// Now captures the current wall clock as a Timestamp.
func Now() Timestamp {
	t := time.Now()

	return Timestamp{
		Seconds:     uint64(t.Unix()), //nolint:gosec
		Nanoseconds: uint32(t.Nanosecond()),
	}
}

// Time converts back to a time.Time for arithmetic.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Seconds), int64(t.Nanoseconds)) //nolint:gosec
}

// DHType distinguishes a network-reachable payload from a local character
// device.
type DHType uint8

const (
	DHTypeNetwork DHType = iota
	DHTypeDevice
)

func (t DHType) String() string {
	if t == DHTypeDevice {
		return "Device"
	}

	return "Network"
}

func (t DHType) MarshalJSON() ([]byte, error) {
	return marshalEnumString(t.String())
}

func (t *DHType) UnmarshalJSON(data []byte) error {
	s, err := unmarshalEnumString(data)
	if err != nil {
		return err
	}

	if s == "Device" {
		*t = DHTypeDevice
	} else {
		*t = DHTypeNetwork
	}

	return nil
}

// Statistics is a saturating snapshot of one relay direction's counters,
// or (via Combine) of a whole DH's traffic in both directions.
type Statistics struct {
	Timestamp    *Timestamp `json:"timestamp,omitempty"`
	BytesRx      uint64     `json:"bytes_rx"`
	ReadsOK      uint64     `json:"reads_ok"`
	ReadsErr     uint64     `json:"reads_err"`
	BytesTx      uint64     `json:"bytes_tx"`
	WritesOK     uint64     `json:"writes_ok"`
	WritesErr    uint64     `json:"writes_err"`
}

// SaturatingAdd adds b to a, clamping at 2^64-1 instead of wrapping.
// Used both by Combine, when merging two snapshots, and by the relay
// package, at the point each individual counter is incremented.
func SaturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}

	return sum
}

// Combine merges another Statistics snapshot into s, saturating at
// 2^64-1 per spec.
func (s Statistics) Combine(o Statistics) Statistics {
	return Statistics{
		BytesRx:   SaturatingAdd(s.BytesRx, o.BytesRx),
		ReadsOK:   SaturatingAdd(s.ReadsOK, o.ReadsOK),
		ReadsErr:  SaturatingAdd(s.ReadsErr, o.ReadsErr),
		BytesTx:   SaturatingAdd(s.BytesTx, o.BytesTx),
		WritesOK:  SaturatingAdd(s.WritesOK, o.WritesOK),
		WritesErr: SaturatingAdd(s.WritesErr, o.WritesErr),
	}
}
