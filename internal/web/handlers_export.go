package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/logging"
)

// handleExport downloads the table as CSV, XLSX or PDF.
//
// Query parameters:
//   - format: csv (default), xlsx or pdf
//   - scope: page (default) exports the rows on screen; all refetches the
//     whole filtered result set in chunks
//   - mount: the table mount, for plain links that cannot send headers
//   - everything else is table state, as on the page URL
//
// The file is built in memory before any byte is written, so a failed
// export becomes an error response rather than a truncated download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := datatable.ParseFormat(r.URL.Query().Get(paramFormat))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	scope := datatable.ParseScope(r.URL.Query().Get(paramScope))

	def, err := lookup(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	m, _, err := s.mountTable(r, def)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	tbl := m.table

	if scope == datatable.ScopePage {
		err = tbl.Load(r.Context())
	}
	// The export works from a snapshot of the request, so the tab may keep
	// paging while a full export runs.
	s.mounts.release(m)
	if err != nil && !errors.Is(err, datatable.ErrStaleResponse) {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	log := logging.WithFields(r.Context(),
		"entity", def.Key,
		"mount_id", m.key.id,
		"scope", scope,
		"format", format,
	)
	var buf bytes.Buffer
	if scope == datatable.ScopeAll {
		log.Info("export started")
		err = s.exportAll(r.Context(), tbl, &buf, format)
	} else {
		_, err = tbl.ExportPage(&buf, format)
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	filename := tbl.ExportFilename(format)
	log.Info("export served",
		"filename", filename,
		"size", humanize.Bytes(uint64(buf.Len())),
	)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// exportAll runs a full export inside an export slot and the export
// timeout.
func (s *Server) exportAll(ctx context.Context, tbl *datatable.Table, buf *bytes.Buffer, format datatable.Format) error {
	if err := s.exports.Acquire(ctx); err != nil {
		return err
	}
	defer s.exports.Release()

	if s.cfg.Export.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Export.Timeout)
		defer cancel()
	}
	_, err := tbl.ExportAll(ctx, buf, format)
	return err
}
