package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
	"github.com/nerrad567/hvcrate-core/internal/param"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// CrateResponse describes the discovered crate.
type CrateResponse struct {
	ID         string          `json:"id"`
	SystemType string          `json:"system_type"`
	Address    string          `json:"address"`
	ReadOnly   bool            `json:"read_only"`
	Skipped    int             `json:"skipped"`
	Boards     []BoardResponse `json:"boards"`
	Stats      registry.Stats  `json:"stats"`
}

// BoardResponse describes one board of the crate.
type BoardResponse struct {
	Slot         int    `json:"slot"`
	Model        string `json:"model"`
	Description  string `json:"description"`
	Serial       string `json:"serial"`
	Firmware     string `json:"firmware"`
	ChannelCount int    `json:"channel_count"`
}

// ParameterValue is the result of a parameter read or write.
type ParameterValue struct {
	Token     registry.Token `json:"token"`
	Record    string         `json:"record"`
	Name      string         `json:"name"`
	Kind      param.Kind     `json:"kind"`
	Value     any            `json:"value"`
	Formatted string         `json:"formatted"`
	Timestamp time.Time      `json:"timestamp"`

	// CommandID correlates a write with the server log.
	CommandID string `json:"command_id,omitempty"`
}

// WriteRequest is the body of PUT /parameters/{ref}/value.
type WriteRequest struct {
	// Value is a number, a string (labels, hex masks, text) or a boolean.
	Value any `json:"value"`

	// Mask selects the bits written for bitmask kinds. Defaults to all bits.
	Mask *uint32 `json:"mask,omitempty"`
}

// handleGetCrate returns the crate, its boards and registry statistics.
func (s *Server) handleGetCrate(w http.ResponseWriter, _ *http.Request) {
	reg := s.router.Registry()
	c := reg.Crate()

	boards := make([]BoardResponse, 0, len(c.Boards))
	for _, bd := range c.Boards {
		boards = append(boards, BoardResponse{
			Slot:         bd.Slot,
			Model:        bd.Model,
			Description:  bd.Description,
			Serial:       bd.Serial,
			Firmware:     bd.Firmware,
			ChannelCount: bd.ChannelCount,
		})
	}

	writeJSON(w, http.StatusOK, CrateResponse{
		ID:         s.crateID,
		SystemType: c.SystemType.String(),
		Address:    c.Address,
		ReadOnly:   c.ReadOnly,
		Skipped:    c.Skipped(),
		Boards:     boards,
		Stats:      reg.Stats(),
	})
}

// handleCrateInfo returns the human-readable crate listing as plain text.
func (s *Server) handleCrateInfo(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.router.Registry().Crate().WriteInfo(&buf); err != nil {
		writeInternalError(w, "failed to render crate info")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(buf.Bytes())
}

// handleListParameters lists registry entries.
//
// Query parameters:
//   - filter: case-insensitive substring of the record or short name
//   - category: exact category name (e.g. "channel.numeric")
//   - writable: "true" keeps only writable parameters
func (s *Server) handleListParameters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := strings.ToUpper(q.Get("filter"))
	category := q.Get("category")
	writableOnly := q.Get("writable") == "true"

	entries := s.router.Entries()
	out := make([]registry.Entry, 0, len(entries))
	for _, e := range entries {
		if filter != "" && !strings.Contains(e.ID.Record, filter) && !strings.Contains(e.ID.Short, filter) {
			continue
		}
		if category != "" && e.Category.String() != category {
			continue
		}
		if writableOnly && !e.Param.Writable() {
			continue
		}
		out = append(out, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"parameters": out,
		"count":      len(out),
	})
}

// handleParameterStats returns the number of parameters per category.
func (s *Server) handleParameterStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Registry().Stats())
}

// handleGetParameter returns the registry entry for a token or record name.
func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	e, err := s.router.Resolve(chi.URLParam(r, "ref"))
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleReadParameter reads a parameter from the crate.
//
// Query parameters:
//   - mask: bits to read for bitmask kinds, decimal or 0x hex
func (s *Server) handleReadParameter(w http.ResponseWriter, r *http.Request) {
	mask, err := parseMask(r.URL.Query().Get("mask"))
	if err != nil {
		writeBadRequest(w, "invalid mask: "+err.Error())
		return
	}

	reading, err := s.router.Read(chi.URLParam(r, "ref"), mask)
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.parameterValue(reading))
}

// handleWriteParameter writes a parameter. The write goes through the
// bridge when one is attached so the read-back is published.
func (s *Server) handleWriteParameter(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ref := chi.URLParam(r, "ref")
	cmd := hv.CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Ref:       ref,
		Value:     req.Value,
		Mask:      req.Mask,
		Source:    "api:" + callerName(r.Context()),
	}

	text, err := cmd.ValueText()
	if err != nil {
		s.recordWrite(r.Context(), cmd, fmt.Sprint(req.Value), hv.Reading{}, err)
		writeRouterError(w, err)
		return
	}

	var reading hv.Reading
	if s.bridge != nil {
		reading, err = s.bridge.Write(ref, text, cmd.EffectiveMask())
	} else {
		reading, err = s.router.Write(ref, text, cmd.EffectiveMask())
	}
	if err != nil {
		s.logger.Warn("parameter write failed",
			"command_id", cmd.ID,
			"ref", ref,
			"source", cmd.Source,
			"error", err,
		)
		s.recordWrite(r.Context(), cmd, text, reading, err)
		writeRouterError(w, err)
		return
	}
	s.recordWrite(r.Context(), cmd, text, reading, nil)

	s.logger.Info("parameter written",
		"command_id", cmd.ID,
		"record", reading.Entry.ID.Record,
		"value", reading.Formatted(),
		"source", cmd.Source,
	)

	resp := s.parameterValue(reading)
	resp.CommandID = cmd.ID
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parameterValue(r hv.Reading) ParameterValue {
	return ParameterValue{
		Token:     r.Entry.Token,
		Record:    r.Entry.ID.Record,
		Name:      r.Entry.ID.WithPrefix(s.prefix),
		Kind:      r.Entry.Kind,
		Value:     r.Native(),
		Formatted: r.Formatted(),
		Timestamp: time.Now().UTC(),
	}
}

// parseMask parses an optional mask in decimal or 0x hex.
func parseMask(s string) (uint32, error) {
	if s == "" {
		return hv.FullMask, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
