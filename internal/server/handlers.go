package server

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/d1meta/internal/snapshot"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pinger != nil {
		if err := s.opts.Pinger.Ping(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	names, err := s.opts.Reader.SchemaNames(r.Context())
	respond(w, r, names, err)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	names, err := s.opts.Reader.TableNames(r.Context(), chi.URLParam(r, "schema"))
	respond(w, r, names, err)
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	names, err := s.opts.Reader.ViewNames(r.Context(), chi.URLParam(r, "schema"))
	respond(w, r, names, err)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	info, err := s.opts.Reader.InspectTable(r.Context(), chi.URLParam(r, "table"))
	respond(w, r, info, err)
}

func (s *Server) handleTableExists(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	ok, err := s.opts.Reader.TableExists(r.Context(), table)
	respond(w, r, map[string]any{"table": table, "exists": ok}, err)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.opts.Reader.Columns(r.Context(), chi.URLParam(r, "table"))
	respond(w, r, cols, err)
}

func (s *Server) handlePrimaryKey(w http.ResponseWriter, r *http.Request) {
	pk, err := s.opts.Reader.PrimaryKey(r.Context(), chi.URLParam(r, "table"))
	respond(w, r, pk, err)
}

func (s *Server) handleForeignKeys(w http.ResponseWriter, r *http.Request) {
	fks, err := s.opts.Reader.ForeignKeys(r.Context(), chi.URLParam(r, "table"))
	respond(w, r, fks, err)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	idx, err := s.opts.Reader.Indexes(r.Context(), chi.URLParam(r, "table"))
	respond(w, r, idx, err)
}

func (s *Server) handleUniqueConstraints(w http.ResponseWriter, r *http.Request) {
	uniq, err := s.opts.Reader.UniqueConstraints(r.Context(), chi.URLParam(r, "table"))
	respond(w, r, uniq, err)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := snapshot.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := snapshot.Build(r.Context(), s.opts.Reader, s.opts.Database)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap, format); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSnapshotExport(w http.ResponseWriter, r *http.Request) {
	if s.opts.Exporter == nil {
		notConfigured(w, "snapshot export is not configured")
		return
	}

	snap, err := snapshot.Build(r.Context(), s.opts.Reader, s.opts.Database)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.opts.Exporter.Export(r.Context(), snap)
	respondStatus(w, r, http.StatusCreated, res, err)
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	if s.opts.Exporter == nil {
		notConfigured(w, "snapshot export is not configured")
		return
	}
	objs, err := s.opts.Exporter.List(r.Context(), s.opts.Database)
	respond(w, r, objs, err)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Cache == nil {
		notConfigured(w, "catalog cache is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Cache.Stats())
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.opts.Cache == nil {
		notConfigured(w, "catalog cache is disabled")
		return
	}

	if table := r.URL.Query().Get("table"); table != "" {
		s.opts.Cache.Invalidate(table)
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": table})
		return
	}
	s.opts.Cache.InvalidateAll()
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": "*"})
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	respondStatus(w, r, http.StatusOK, v, err)
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func notConfigured(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotImplemented, errorBody{Error: "not_configured", Message: msg})
}
