package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"reflect"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/vango-dev/cells/pkg/cell"
)

// maxBodySize bounds PUT bodies.
const maxBodySize = 1 << 20

// ObjectInfo describes a registered object.
type ObjectInfo struct {
	Name   string   `json:"name"`
	Object string   `json:"object"`
	Closed bool     `json:"closed"`
	Cells  []string `json:"cells"`
}

// ObjectState is the response of GET /objects/{object}.
type ObjectState struct {
	ObjectInfo
	Values       map[string]any      `json:"values"`
	Dependencies map[string][]string `json:"dependencies"`
}

// CellValue is the body of PUT /objects/{object}/cells/{cell}.
type CellValue struct {
	Value json.RawMessage `json:"value"`
}

type cellResponse struct {
	Object string `json:"object"`
	Cell   string `json:"cell"`
	Value  any    `json:"value"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"objects":  len(s.Names()),
		"watchers": s.WatcherCount(),
	})
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ObjectInfo, 0, len(s.objects))
	for _, name := range slices.Sorted(maps.Keys(s.objects)) {
		out = append(out, describe(name, s.objects[name]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "object")

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[name]
	if !ok {
		s.writeError(w, r, NotFound(fmt.Sprintf("object %q not found", name)))
		return
	}
	writeJSON(w, http.StatusOK, ObjectState{
		ObjectInfo:   describe(name, obj),
		Values:       obj.Snapshot(),
		Dependencies: obj.Dependencies(),
	})
}

func (s *Server) handleGetCell(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "object")
	cellName := chi.URLParam(r, "cell")

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[name]
	if !ok {
		s.writeError(w, r, NotFound(fmt.Sprintf("object %q not found", name)))
		return
	}

	var value any
	if err := cell.Catch(func() { value = obj.Peek(cellName) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cellResponse{Object: name, Cell: cellName, Value: value})
}

func (s *Server) handlePutCell(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "object")
	cellName := chi.URLParam(r, "cell")

	var body CellValue
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		s.writeError(w, r, BadRequest(fmt.Errorf("decode body: %w", err)))
		return
	}
	if len(body.Value) == 0 {
		s.writeError(w, r, BadRequestf("missing \"value\""))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[name]
	if !ok {
		s.writeError(w, r, NotFound(fmt.Sprintf("object %q not found", name)))
		return
	}

	var value any
	err := cell.Catch(func() {
		v, err := decodeValue(body.Value, obj.Peek(cellName))
		if err != nil {
			panic(BadRequest(err))
		}
		cell.WithContext(r.Context(), func() {
			obj.Set(cellName, v)
		})
		value = obj.Peek(cellName)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cellResponse{Object: name, Cell: cellName, Value: value})
}

// decodeValue decodes raw into a value of the same type as current, so a
// client writing 3 to an int cell stores an int. Cells without a value, or
// holding nil, take the JSON's natural Go type.
func decodeValue(raw json.RawMessage, current any) (any, error) {
	if current == nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	ptr := reflect.New(reflect.TypeOf(current))
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("cell holds %T, got JSON %s", current, typeErr.Value)
		}
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func describe(name string, obj *cell.Object) ObjectInfo {
	return ObjectInfo{
		Name:   name,
		Object: obj.String(),
		Closed: obj.Closed(),
		Cells:  obj.Cells(),
	}
}
