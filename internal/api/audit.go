package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/hvcrate-core/internal/audit"
	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
)

// handleListAudit returns the write audit trail of this crate.
//
// Query parameters:
//   - record: exact record name
//   - subject: token subject of the writer
//   - action: "write" or "write_failed"
//   - limit, offset: pagination (limit defaults to 50, max 200)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		CrateID: s.crateID,
		Record:  q.Get("record"),
		Subject: q.Get("subject"),
		Action:  audit.Action(q.Get("action")),
	}
	var err error
	if filter.Limit, err = optionalInt(q.Get("limit")); err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = optionalInt(q.Get("offset")); err != nil {
		writeBadRequest(w, "invalid offset")
		return
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// recordWrite adds a write attempt to the audit trail and announces it on
// the parameter.written channel. Failures are logged and never fail the
// request.
func (s *Server) recordWrite(ctx context.Context, cmd hv.CommandMessage, value string, reading hv.Reading, err error) {
	if s.audit == nil && s.hub == nil {
		return
	}

	record := reading.Entry.ID.Record
	if record == "" {
		record = cmd.Ref
	}
	var result string
	if err == nil {
		result = reading.Formatted()
	}

	e := audit.NewWriteEntry(s.crateID, record, audit.SourceAPI, value, result, err)
	e.CommandID = cmd.ID
	if claims := claimsFromContext(ctx); claims != nil {
		e.Subject = claims.Subject
	}

	if s.audit != nil {
		if auditErr := s.audit.Create(ctx, e); auditErr != nil {
			s.logger.Error("recording audit entry", "command_id", cmd.ID, "error", auditErr)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(ChannelParameterWritten, record, e)
	}
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
