package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Vec2 is a point or direction in the arena plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Action indexes the four discrete moves the agent can take.
type Action int

const (
	ActionForward Action = iota
	ActionBackward
	ActionLeft
	ActionRight
)

// ActionCount is the size of the action set.
const ActionCount = 4

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionBackward:
		return "backward"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	default:
		return "unknown"
	}
}

// ActionSource records which branch of the action selector produced a move.
type ActionSource string

const (
	SourcePolicy    ActionSource = "policy"
	SourceHeuristic ActionSource = "heuristic"
	SourceExplore   ActionSource = "explore"
)

const (
	TerminalDepleted = "depleted"
	TerminalBudget   = "budget"
)

// StepRecord is emitted once per simulated step.
type StepRecord struct {
	Step      int          `json:"step"`
	Energy    float64      `json:"energy"`
	Position  Vec2         `json:"position"`
	Velocity  Vec2         `json:"velocity"`
	Action    Action       `json:"action"`
	Source    ActionSource `json:"source"`
	Learned   bool         `json:"learned"`
	Fed       bool         `json:"fed"`
	FoodEaten int          `json:"food_eaten"`
	Gain      float64      `json:"gain"`
	Reward    float64      `json:"reward"`
	Cost      float64      `json:"cost"`
	Epsilon   float64      `json:"epsilon"`
}

// TrialStats summarizes one trial.
type TrialStats struct {
	SurvivalTime      int     `json:"survival_time"`
	FoodConsumed      int     `json:"total_food_consumed"`
	LearningSteps     int     `json:"learning_episodes"`
	LearningRatio     float64 `json:"learning_ratio"`
	AverageEnergy     float64 `json:"average_energy"`
	FinalEnergy       float64 `json:"final_energy"`
	EnergySpent       float64 `json:"energy_spent"`
	FeedingEfficiency float64 `json:"feeding_efficiency"`
	EnergyEfficiency  float64 `json:"energy_efficiency"`
	TerminalReason    string  `json:"terminal_reason"`
}

// TrialRecord is a persisted trial result.
type TrialRecord struct {
	VersionedRecord
	RunID  string      `json:"run_id"`
	Label  string      `json:"label"`
	Index  int         `json:"index"`
	Seed   int64       `json:"seed"`
	Stats  TrialStats  `json:"stats"`
	Params TrialParams `json:"params"`
}

// TrialParams is the persisted view of the tunable part of a trial config.
type TrialParams struct {
	DecayRate         float64 `json:"decay_rate"`
	ComputationCost   float64 `json:"computation_cost"`
	LearningThreshold float64 `json:"learning_threshold"`
	Steps             int     `json:"steps"`
	Explore           bool    `json:"explore"`
}

// ConfigAverages holds per-configuration means over trials.
type ConfigAverages struct {
	Label         string      `json:"label"`
	Params        TrialParams `json:"params"`
	Trials        int         `json:"trials"`
	FoodConsumed  float64     `json:"avg_food_consumed"`
	LearningRatio float64     `json:"avg_learning_ratio"`
	Efficiency    float64     `json:"avg_efficiency"`
	EfficiencyStd float64     `json:"efficiency_std"`
	SurvivalTime  float64     `json:"avg_survival_time"`
	AverageEnergy float64     `json:"avg_energy"`
}

// ExperimentRecord is the persisted summary of an aggregated experiment.
type ExperimentRecord struct {
	VersionedRecord
	RunID        string           `json:"run_id"`
	Kind         string           `json:"kind"`
	CreatedAtUTC string           `json:"created_at_utc"`
	BaseSeed     int64            `json:"base_seed"`
	Trials       int              `json:"trials"`
	Metric       string           `json:"metric"`
	Configs      []ConfigAverages `json:"configs"`
	Ratio        *float64         `json:"ratio,omitempty"`
	Verdict      string           `json:"verdict,omitempty"`
	Valid        bool             `json:"valid"`
}
