package types

// StatValueType selects which of the two parallel field sets of a stat
// is populated. This is a closed two-way variant, not a union: code that
// consumes a Stat must branch on the type explicitly.
type StatValueType int32

const (
	StatValueInt   StatValueType = 1
	StatValueFloat StatValueType = 2
)

// Stat is one user statistic as held by the backend.
// Exactly one of the Int/Float field sets is meaningful, per ValueType;
// the other set stays at its zero value.
type Stat struct {
	StatID        uint64
	Key           string
	ValueType     StatValueType
	WindowSize    uint32
	IncrementOnly bool

	IntValue        int32
	IntDefaultValue int32
	IntMinValue     int32
	IntMaxValue     int32
	IntMaxChange    int32

	FloatValue        float32
	FloatDefaultValue float32
	FloatMinValue     float32
	FloatMaxValue     float32
	FloatMaxChange    float32
}

// StatValue carries a typed value for an update operation.
type StatValue struct {
	Type  StatValueType
	Int   int32
	Float float32
}
