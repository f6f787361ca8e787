package wire

import "encoding/json"

// ErrorCode is the wire vocabulary of failure reasons a reply can carry.
type ErrorCode uint16

const (
	Unknown ErrorCode = iota
	InvalidCommand
	DHNotFound
	DHAlreadyExists
	InvalidArmKey
	RestartNotArmed
	ArmWindowExpired
	ResourceAllocationFailed
	InvalidConfiguration
	IoError
)

var errorCodeNames = map[ErrorCode]string{
	Unknown:                  "Unknown",
	InvalidCommand:           "InvalidCommand",
	DHNotFound:               "DHNotFound",
	DHAlreadyExists:          "DHAlreadyExists",
	InvalidArmKey:            "InvalidArmKey",
	RestartNotArmed:          "RestartNotArmed",
	ArmWindowExpired:         "ArmWindowExpired",
	ResourceAllocationFailed: "ResourceAllocationFailed",
	InvalidConfiguration:     "InvalidConfiguration",
	IoError:                  "IoError",
}

var namesToErrorCode = func() map[string]ErrorCode {
	m := make(map[string]ErrorCode, len(errorCodeNames))
	for code, name := range errorCodeNames {
		m[name] = code
	}

	return m
}()

func (e ErrorCode) String() string {
	if name, ok := errorCodeNames[e]; ok {
		return name
	}

	return "Unknown"
}

func (e ErrorCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *ErrorCode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	code, ok := namesToErrorCode[name]
	if !ok {
		*e = Unknown
		return nil
	}

	*e = code

	return nil
}

// Status is the Success|Failure(ErrorCode) result every reply carries.
type Status struct {
	OK    bool
	Error ErrorCode
}

// Success builds an affirmative Status.
func Success() Status { return Status{OK: true} }

// Failure builds a Status reporting code.
func Failure(code ErrorCode) Status { return Status{OK: false, Error: code} }

type statusWire struct {
	Status string    `json:"status"`
	Error  ErrorCode `json:"error,omitempty"`
}

func (s Status) MarshalJSON() ([]byte, error) {
	w := statusWire{Status: "failure"}
	if s.OK {
		w.Status = "success"
	} else {
		w.Error = s.Error
	}

	return json.Marshal(w)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var w statusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.OK = w.Status == "success"
	s.Error = w.Error

	return nil
}
