package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/entities"
	"github.com/JonMunkholm/votedesk/internal/logging"
	"github.com/JonMunkholm/votedesk/internal/web/middleware"
	"github.com/JonMunkholm/votedesk/internal/web/views"
)

// TableResponse is the JSON form of a table request.
type TableResponse struct {
	Entity string `json:"entity"`
	Mount  string `json:"mount"`
	// Query is the canonical table state; send it back as the query string
	// of the next request.
	Query string         `json:"query"`
	View  datatable.View `json:"view"`
}

// pagePath is the address of an entity page with state q.
func pagePath(entity, q string) string {
	if q == "" {
		return "/admin/" + entity
	}
	return "/admin/" + entity + "?" + q
}

// nav builds the sidebar, marking active.
func nav(active string) []views.NavGroup {
	var groups []views.NavGroup
	for _, name := range entities.Groups() {
		g := views.NavGroup{Name: name}
		for _, def := range entities.ByGroup(name) {
			g.Items = append(g.Items, views.NavItem{
				Key:    def.Key,
				Label:  def.Label,
				Href:   pagePath(def.Key, ""),
				Active: def.Key == active,
			})
		}
		groups = append(groups, g)
	}
	return groups
}

// homeTable is where the dashboard opens.
const homeTable = "users"

// handleHome redirects to the users table, or to the table directory when
// the definitions have no users table.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := entities.Get(homeTable); ok {
		http.Redirect(w, r, pagePath(homeTable, ""), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// handleIndex renders the table directory.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	groups := nav("")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	views.Page("Tables", groups, views.Index(groups)).Render(r.Context(), w)
}

// handleListTables returns every table definition.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entities.All())
}

// handleTablePage renders a table for its current URL state: the full page
// for a browser, the panel for htmx, or JSON for the API.
func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	s.serveTable(w, r, nil)
}

// handleTableAction applies one user action to the mounted table and
// renders the result.
func (s *Server) handleTableAction(w http.ResponseWriter, r *http.Request) {
	act, ok := tableActions[chi.URLParam(r, "action")]
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w %q", errUnknownAction, chi.URLParam(r, "action")), http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: form: %v", errBadParam, err), http.StatusBadRequest)
		return
	}
	s.serveTable(w, r, act)
}

// lookup resolves the {entity} route parameter.
func lookup(r *http.Request) (entities.Definition, error) {
	key := chi.URLParam(r, "entity")
	def, ok := entities.Get(key)
	if !ok {
		return entities.Definition{}, fmt.Errorf("%w %q", errUnknownTable, key)
	}
	return def, nil
}

// mountTable finds or creates the request's mount and binds it to the
// request's URL state. The caller must release the mount.
func (s *Server) mountTable(r *http.Request, def entities.Definition) (*mount, *datatable.QueryPort, error) {
	id := mountID(r)
	port := datatable.NewQueryPort(stateValues(r))
	key := mountKey{owner: owner(r), id: id, entity: def.Key}

	m, created, err := s.mounts.acquire(key, func() (*datatable.Table, error) {
		return s.newTable(def, key, port)
	})
	if err != nil {
		return nil, nil, err
	}
	if !created {
		m.table.Sync(port)
	}
	return m, port, nil
}

// newTable assembles a table for def.
func (s *Server) newTable(def entities.Definition, key mountKey, port datatable.StatePort) (*datatable.Table, error) {
	fetch, err := s.backend.Fetcher(def)
	if err != nil {
		return nil, err
	}

	tc := def.TableConfig(fetch, s.queries)
	if tc.Defaults.PageSize <= 0 {
		tc.Defaults.PageSize = s.cfg.Table.DefaultPageSize
	}
	tc.State = port
	tc.Prefs = s.prefsFor(key.owner)
	tc.Clock = s.clock
	tc.Logger = slog.Default().With("entity", def.Key, "mount_id", key.id)
	tc.SearchDelay = s.cfg.Table.SearchDelay
	tc.PageCacheSize = s.cfg.Table.PageCacheSize
	return datatable.New(tc)
}

func (s *Server) prefsFor(owner string) datatable.PreferenceStore {
	if s.prefs == nil {
		return s.memPrefs
	}
	return s.prefs.ForOwner(owner)
}

// serveTable is the request cycle shared by page loads and actions: bind
// URL state, apply the action, load, render.
func (s *Server) serveTable(w http.ResponseWriter, r *http.Request, act tableAction) {
	def, err := lookup(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	m, port, err := s.mountTable(r, def)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.mounts.release(m)

	log := logging.ForTable(r.Context(), def.Key, m.key.id)

	refresh := false
	if act != nil {
		if refresh, err = act(r, m.table); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
	}

	if refresh {
		err = m.table.Refresh(r.Context())
	} else {
		err = m.table.Load(r.Context())
	}
	status := http.StatusOK
	if err != nil && !errors.Is(err, datatable.ErrStaleResponse) {
		// The view carries the error; the panel shows it with a retry button.
		log.Warn("table load failed", "error", err)
		status = statusFor(err)
	}

	s.renderTable(w, r, def, m.key.id, port, m.table.View(), status)
}

// renderTable writes the view in the form the client asked for. When the
// table rewrote its URL state, htmx is told to replace the browser URL.
func (s *Server) renderTable(w http.ResponseWriter, r *http.Request, def entities.Definition, id string, port *datatable.QueryPort, view datatable.View, status int) {
	query := port.Encode()
	if !def.Options.EnableURLState {
		query = ""
	}
	w.Header().Set(middleware.MountHeader, id)
	if def.Options.EnableURLState && port.Changed() {
		w.Header().Set("HX-Replace-Url", pagePath(def.Key, query))
	}

	if wantsJSON(r) {
		writeJSON(w, status, TableResponse{Entity: def.Key, Mount: id, Query: query, View: view})
		return
	}

	panel := views.Panel{
		Entity:   def.Key,
		Label:    def.Label,
		MountID:  id,
		BasePath: pagePath(def.Key, ""),
		Query:    query,
		View:     view,
		Formats:  def.ColumnFormats(),
		Filters:  def.Filters,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if isHTMX(r) {
		views.Table(panel).Render(r.Context(), w)
		return
	}
	views.TablePage(nav(def.Key), panel).Render(r.Context(), w)
}
