package ordering

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

var (
	errNotAnObject = errors.New("request body must be a JSON object mapping ids to orders")
	invalidIDText  = "invalid id"
	invalidOrdText = "order must be a non-negative integer"
	jsonNull       = []byte("null")
)

// Assignment is one `id -> order` pair of a bulk reorder.
type Assignment struct {
	ID    int64
	Order int
}

// ParseReorder decodes a `{"<id>": <order>, ...}` JSON object.
// Every key and value is checked before anything is returned, so a malformed mapping
// never leads to a partial update. Assignments are sorted by ID.
func ParseReorder(body []byte) ([]Assignment, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, jsonNull) || body[0] != '{' {
		return nil, core.NewValidationError(errNotAnObject)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.NewValidationError(errNotAnObject)
	}

	var fldErrs []core.FieldError
	assignments := make([]Assignment, 0, len(raw))
	for key, val := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			fldErrs = append(fldErrs, core.FieldError{Field: key, Error: invalidIDText})
			continue
		}
		ord, ok := parseOrder(val)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: key, Error: invalidOrdText})
			continue
		}
		assignments = append(assignments, Assignment{ID: id, Order: ord})
	}
	if len(fldErrs) > 0 {
		sort.Slice(fldErrs, func(i, j int) bool { return fldErrs[i].Field < fldErrs[j].Field })
		return nil, core.NewValidationError(errors.New("invalid order mapping"), fldErrs...)
	}

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

// parseOrder only accepts plain JSON integer literals in [0, MaxInt32].
func parseOrder(val json.RawMessage) (int, bool) {
	s := string(bytes.TrimSpace(val))
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// Reorder writes each assignment independently, restricted to rows owned by ownerID.
// Rows not owned by ownerID (or missing) are skipped without error. A store error stops
// the loop; assignments written before it stay written. Returns the number of rows updated.
func Reorder(ctx context.Context, store Store, entity, ownerID string, assignments []Assignment, exec ...core.DBExecutor) (int, error) {
	var applied int
	for _, a := range assignments {
		ok, err := store.UpdateOrder(ctx, entity, a.ID, ownerID, a.Order, exec...)
		if err != nil {
			return applied, errors.Wrapf(err, "updating order of %s %d", entity, a.ID)
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}
