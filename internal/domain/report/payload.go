package report

import (
	"github.com/okian/stagedrops/internal/domain/model"
)

// Servers accepted by the statistics service.
var Servers = map[string]bool{"CN": true, "US": true, "JP": true, "KR": true}

// Reportable drop types. Everything else is left out of the payload.
var Reportable = map[model.DropType]bool{
	model.DropNormal:    true,
	model.DropExtra:     true,
	model.DropFurniture: true,
	model.DropSpecial:   true,
}

// PayloadDrop is a drop entry as the statistics service expects it.
type PayloadDrop struct {
	DropType model.DropType `json:"dropType"`
	ItemID   string         `json:"itemId"`
	Quantity int            `json:"quantity"`
}

// Payload is the body of one drop report.
type Payload struct {
	Server  string        `json:"server"`
	StageID string        `json:"stageId"`
	Drops   []PayloadDrop `json:"drops"`
	Source  string        `json:"source"`
	Version string        `json:"version"`
}

// BuildPayload filters the round's drops to the reportable types. A
// reportable drop without an item id fails the whole payload.
func BuildPayload(server, source, version string, info model.RoundInfo) (Payload, error) {
	p := Payload{
		Server:  server,
		StageID: info.Stage.StageID,
		Drops:   make([]PayloadDrop, 0, len(info.Drops)),
		Source:  source,
		Version: version,
	}
	for _, d := range info.Drops {
		if !Reportable[d.DropType] {
			continue
		}
		if d.ItemID == "" {
			return Payload{}, ErrUnknownDrop
		}
		p.Drops = append(p.Drops, PayloadDrop{DropType: d.DropType, ItemID: d.ItemID, Quantity: d.Quantity})
	}
	return p, nil
}
