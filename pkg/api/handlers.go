package api

import (
	"net/http"
	"strings"

	"github.com/specdock/specdock/pkg/httputil"
	"github.com/specdock/specdock/pkg/query"
	"github.com/specdock/specdock/pkg/registry"
)

// CreateRegistrationRequest is the body of a registration request.
type CreateRegistrationRequest struct {
	URL       string `json:"url"`
	Overwrite bool   `json:"overwrite,omitempty"`
	DryRun    bool   `json:"dryrun,omitempty"`
}

func (s *Server) createRegistration(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req CreateRegistrationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.URL == "" {
		httputil.WriteBadRequest(w, "url is required")
		return
	}

	id, err := s.registry.Register(r.Context(), req.URL, user, req.Overwrite, req.DryRun)
	if err != nil {
		s.writeError(w, err)
		return
	}

	body := map[string]any{"success": true, "_id": id}
	if req.DryRun {
		body["dryrun"] = true
		httputil.WriteSuccess(w, body)
		return
	}
	httputil.WriteCreated(w, body)
}

func (s *Server) listRegistrations(w http.ResponseWriter, r *http.Request) {
	from, err := httputil.ParseQueryInt(r, "from", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	size, err := httputil.ParseQueryInt(r, "size", 10)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := s.registry.List(r.Context(), from, size)
	if err != nil {
		s.writeError(w, err)
		return
	}

	hits := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, map[string]any{
			"_id":   entry.ID,
			"_meta": entry.Meta,
		})
	}
	httputil.WriteSuccess(w, map[string]any{"total": len(hits), "hits": hits})
}

// getRegistration serves the verbatim stored document. With ?meta=true the
// identity and registration metadata are attached; with ?ordered=false the
// stored key order is kept instead of the canonical presentation order.
func (s *Server) getRegistration(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	entry, err := s.registry.Lookup(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ordered, err := httputil.ParseQueryBool(r, "ordered", true)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	withMeta, err := httputil.ParseQueryBool(r, "meta", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	doc, err := registry.DecodeRaw(entry.Raw, ordered)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if withMeta {
		doc.Set("_id", entry.ID)
		doc.Set("_meta", entry.Meta)
	}
	httputil.WriteSuccess(w, doc)
}

func (s *Server) deleteRegistration(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), id, user); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// SetSlugRequest is the body of a slug assignment.
type SetSlugRequest struct {
	Slug string `json:"slug"`
}

func (s *Server) setSlug(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req SetSlugRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	slug, err := s.registry.SetSlug(r.Context(), id, req.Slug, user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"success": true, "slug": slug})
}

func (s *Server) deleteSlug(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.registry.DeleteSlug(r.Context(), id, user); err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) refreshRegistration(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identity(w, r); !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	dryRun, err := httputil.ParseQueryBool(r, "dryrun", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	status, err := s.registry.Refresh(r.Context(), id, dryRun)
	if err != nil && status == registry.RefreshFailed {
		s.writeError(w, err)
		return
	}

	body := map[string]any{
		"success": err == nil,
		"status":  status.String(),
	}
	if err != nil {
		// invalid refreshes report the violation but keep the entry
		body["error"] = err.Error()
	}
	httputil.WriteSuccess(w, body)
}

// RefreshAllRequest selects the entries of a bulk refresh; empty means
// every entry.
type RefreshAllRequest struct {
	IDs    []string `json:"ids,omitempty"`
	DryRun bool     `json:"dryrun,omitempty"`
}

func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identity(w, r); !ok {
		return
	}

	var req RefreshAllRequest
	if r.ContentLength > 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	results := s.registry.RefreshAll(r.Context(), req.IDs, req.DryRun)

	items := make([]map[string]any, 0, len(results))
	failed := 0
	for _, res := range results {
		item := map[string]any{"_id": res.ID, "status": res.Status.String()}
		if res.Err != nil {
			item["error"] = res.Err.Error()
			failed++
		}
		items = append(items, item)
	}
	httputil.WriteSuccess(w, map[string]any{
		"total":   len(items),
		"failed":  failed,
		"dryrun":  req.DryRun,
		"results": items,
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := httputil.ParseQueryString(r, "q", "")
	if q == "" {
		httputil.WriteBadRequest(w, "q is required")
		return
	}
	size, err := httputil.ParseQueryInt(r, "size", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	from, err := httputil.ParseQueryInt(r, "from", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var fields []string
	if raw := httputil.ParseQueryString(r, "fields", ""); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	hits, err := s.planner.Search(r.Context(), q, query.Options{Fields: fields, Size: size, From: from})
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		item := map[string]any{"_id": hit.ID, "_score": hit.Score}
		for k, v := range hit.Source {
			if k != "_id" {
				item[k] = v
			}
		}
		items = append(items, item)
	}
	httputil.WriteSuccess(w, map[string]any{"total": len(items), "hits": items})
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	field := httputil.ParseQueryString(r, "field", "")
	if field == "" {
		httputil.WriteBadRequest(w, "field is required")
		return
	}
	size, err := httputil.ParseQueryInt(r, "size", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	buckets, err := s.planner.Suggest(r.Context(), field, size)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{field: buckets})
}
