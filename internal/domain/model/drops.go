package model

// InvalidStageCode is the analyzer sentinel for stages that award nothing.
const InvalidStageCode = "_INVALID_"

// MaxStars is the rating of a perfect clear.
const MaxStars = 3

// Difficulty of a stage.
type Difficulty string

// Stage difficulties.
const (
	DifficultyNormal Difficulty = "NORMAL"
	DifficultyTough  Difficulty = "TOUGH"
)

// DropType classifies a drop record.
type DropType string

// Drop types reported by the analyzer.
const (
	DropNormal       DropType = "NORMAL_DROP"
	DropExtra        DropType = "EXTRA_DROP"
	DropFurniture    DropType = "FURNITURE"
	DropSpecial      DropType = "SPECIAL_DROP"
	DropSanityReturn DropType = "SANITY_RETURN"
	DropFirst        DropType = "FIRST_DROP"
	DropUnknown      DropType = "UNKNOWN"
)

// DropRecord is one distinct item recognized in a round.
type DropRecord struct {
	ItemID   string   `json:"itemId"`
	ItemName string   `json:"itemName"`
	Quantity int      `json:"quantity"`
	DropType DropType `json:"dropType"`
}

// StageIdentity is the stage recognized from the settlement frame.
type StageIdentity struct {
	Code       string     `json:"stageCode"`
	Difficulty Difficulty `json:"difficulty"`
}

// Analysis is the normalized output of one successful frame analysis.
type Analysis struct {
	Stage StageIdentity
	Stars int
	Drops []DropRecord
}

// ItemStat is the per-item session view after a round.
type ItemStat struct {
	ItemID      string `json:"itemId"`
	ItemName    string `json:"itemName"`
	Quantity    int    `json:"quantity"`    // cumulative
	AddQuantity int    `json:"addQuantity"` // this round
}

// StageInfo is the resolved stage for a round.
type StageInfo struct {
	StageCode string `json:"stageCode"`
	StageID   string `json:"stageId,omitempty"`
}

// Valid reports whether the stage awards drops.
func (s StageInfo) Valid() bool {
	return s.StageCode != InvalidStageCode
}

// RoundInfo is the aggregate view emitted after each recognized round.
type RoundInfo struct {
	Stars int          `json:"stars"`
	Stats []ItemStat   `json:"stats"`
	Drops []DropRecord `json:"drops"`
	Stage StageInfo    `json:"stage"`
}

// StageRecord is the catalog entry for a stage.
type StageRecord struct {
	StageID    string     `json:"stageId"`
	Code       string     `json:"code"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	ZoneID     string     `json:"zoneId,omitempty"`
}
