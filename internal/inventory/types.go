package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// Run is one discovery of a crate.
type Run struct {
	ID         string    `json:"id"`
	CrateID    string    `json:"crate_id"`
	SystemType string    `json:"system_type"`
	Address    string    `json:"address"`
	ReadOnly   bool      `json:"read_only"`
	BoardCount int       `json:"board_count"`
	ParamCount int       `json:"param_count"`
	Skipped    int       `json:"skipped"`
	CreatedAt  time.Time `json:"created_at"`

	Boards []Board `json:"boards,omitempty"`
}

// Board is a board present during a run.
type Board struct {
	Slot         int    `json:"slot"`
	Model        string `json:"model"`
	Description  string `json:"description"`
	Serial       string `json:"serial"`
	Firmware     string `json:"firmware"`
	ChannelCount int    `json:"channel_count"`
}

// Parameter is one catalog row. Slot and Channel are -1 when not
// applicable; the pointer fields are nil for kinds without that metadata.
type Parameter struct {
	RunID       string `json:"run_id"`
	Token       uint32 `json:"token"`
	Category    string `json:"category"`
	Kind        string `json:"kind"`
	Width       string `json:"width,omitempty"`
	Scope       string `json:"scope"`
	Slot        int    `json:"slot"`
	Channel     int    `json:"channel"`
	Name        string `json:"name"`
	Mode        string `json:"mode"`
	Short       string `json:"short"`
	Record      string `json:"record"`
	Description string `json:"description"`

	Units    *string  `json:"units,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	OnLabel  *string  `json:"on_label,omitempty"`
	OffLabel *string  `json:"off_label,omitempty"`
}

// RunSnapshot is a run together with its catalog, ready to be saved.
type RunSnapshot struct {
	Run        Run
	Parameters []Parameter
}

// Snapshot captures the registry's crate and catalog under a fresh run ID.
func Snapshot(crateID string, reg *registry.Registry) *RunSnapshot {
	c := reg.Crate()
	run := Run{
		ID:         uuid.NewString(),
		CrateID:    crateID,
		SystemType: c.SystemType.String(),
		Address:    c.Address,
		ReadOnly:   c.ReadOnly,
		BoardCount: len(c.Boards),
		ParamCount: reg.Len(),
		Skipped:    c.Skipped(),
		CreatedAt:  time.Now().UTC(),
	}
	for _, b := range c.Boards {
		run.Boards = append(run.Boards, Board{
			Slot:         b.Slot,
			Model:        b.Model,
			Description:  b.Description,
			Serial:       b.Serial,
			Firmware:     b.Firmware,
			ChannelCount: b.ChannelCount,
		})
	}

	entries := reg.Entries()
	params := make([]Parameter, 0, len(entries))
	for _, e := range entries {
		params = append(params, parameterFromEntry(run.ID, e))
	}
	return &RunSnapshot{Run: run, Parameters: params}
}

func parameterFromEntry(runID string, e registry.Entry) Parameter {
	p := Parameter{
		RunID:       runID,
		Token:       uint32(e.Token),
		Category:    e.Category.String(),
		Kind:        e.Kind.String(),
		Width:       e.Width,
		Scope:       e.Scope,
		Slot:        e.Slot,
		Channel:     e.Channel,
		Name:        e.Name,
		Mode:        e.Mode,
		Short:       e.ID.Short,
		Record:      e.ID.Record,
		Description: e.ID.Description,
	}
	if e.Numeric != nil {
		units, lo, hi := e.Numeric.Units, e.Numeric.Min, e.Numeric.Max
		p.Units, p.Min, p.Max = &units, &lo, &hi
	}
	if e.Labels != nil {
		on, off := e.Labels.On, e.Labels.Off
		p.OnLabel, p.OffLabel = &on, &off
	}
	return p
}
