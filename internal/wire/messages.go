package wire

// Command bodies (ground -> space). Each carries the seq the reply will
// echo back.

type PingCmd struct {
	Seq uint32 `json:"seq"`
}

type RestartArmCmd struct {
	Seq    uint32 `json:"seq"`
	ArmKey uint64 `json:"arm_key"`
}

type RestartCmd struct {
	Seq    uint32 `json:"seq"`
	ArmKey uint64 `json:"arm_key"`
}

type StartDHCmd struct {
	Seq    uint32 `json:"seq"`
	DHId   uint32 `json:"dh_id"`
	DHType DHType `json:"dh_type"`
	Name   string `json:"name"`
}

type StopDHCmd struct {
	Seq  uint32 `json:"seq"`
	DHId uint32 `json:"dh_id"`
}

type QueryDHCmd struct {
	Seq  uint32 `json:"seq"`
	DHId uint32 `json:"dh_id"`
}

type ConfigCmd struct {
	Seq             uint32  `json:"seq"`
	BeaconInterval *uint64 `json:"beacon_interval_ms,omitempty"`
}

type ConfigDHCmd struct {
	Seq  uint32 `json:"seq"`
	DHId uint32 `json:"dh_id"`
}

// Reply bodies (space -> ground). Seq echoes the originating command.

type PingReply struct {
	Seq       uint32    `json:"seq"`
	Status    Status    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`
}

type Reply struct {
	Seq    uint32 `json:"seq"`
	Status Status `json:"status"`
}

type QueryDHReply struct {
	Seq        uint32      `json:"seq"`
	Status     Status      `json:"status"`
	Statistics *Statistics `json:"statistics,omitempty"`
}

// BeaconMsg is the unsolicited telemetry tag the beacon driver emits.
type BeaconMsg struct {
	Timestamp Timestamp    `json:"timestamp"`
	Position  *EphemerisFix `json:"position,omitempty"`
}

// EphemerisFix is the optional ground-track position carried in a beacon
// when an ephemeris source is configured. Latitude/longitude are decimal
// degrees; this is deliberately the smallest shape internal/ephemeris
// needs to produce, not a full orbit state vector.
type EphemerisFix struct {
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	MGRS         string  `json:"mgrs,omitempty"`
}
