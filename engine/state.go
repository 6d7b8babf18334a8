package engine

// State is where the orchestrator currently is in a cycle. Exposed for
// logging and metrics only; transitions are driven by the pipeline itself.
type State int32

const (
	StateIdle State = iota
	StateFetchData
	StateScreen
	StateIndicators
	StateDecide
	StateRiskCheck
	StateExecute
	StateRecord
	StateError
	StateHalted
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateFetchData:  "fetch_data",
	StateScreen:     "screen",
	StateIndicators: "indicators",
	StateDecide:     "decide",
	StateRiskCheck:  "risk_check",
	StateExecute:    "execute",
	StateRecord:     "record",
	StateError:      "error",
	StateHalted:     "halted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
