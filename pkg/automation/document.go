package automation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document exposes a case as one logical JSON object
// {current_phase, previous_phase, status, data, metadata} addressed by dotted
// paths. Reads are total: any missing segment yields nil. Writes are limited
// to the data and metadata subtrees plus the status field; missing
// intermediate objects are created, writing through a non-object segment is
// ErrBadPath.
type Document struct {
	kase  *models.Case
	raw   []byte
	dirty bool
}

// NewDocument snapshots the case into its logical JSON form.
func NewDocument(kase *models.Case) (*Document, error) {
	view := map[string]any{
		"current_phase":  kase.CurrentPhase,
		"previous_phase": kase.PreviousPhase,
		"status":         kase.Status,
		"data":           kase.Data,
		"metadata":       kase.Metadata,
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot case document: %w", err)
	}

	return &Document{kase: kase, raw: raw}, nil
}

// Get resolves a dotted path, returning nil when any segment is missing.
func (d *Document) Get(path string) any {
	if path == "" {
		return nil
	}

	return gjson.GetBytes(d.raw, path).Value()
}

// Set writes value at a dotted path, creating missing intermediate objects.
func (d *Document) Set(path string, value any) error {
	segments := strings.Split(path, ".")

	switch segments[0] {
	case "data", "metadata":
		// Walk the existing prefix: extending through a non-object is a bad path.
		for i := 1; i < len(segments); i++ {
			prefix := strings.Join(segments[:i], ".")

			existing := gjson.GetBytes(d.raw, prefix)
			if !existing.Exists() || existing.Type == gjson.Null {
				break
			}

			if !existing.IsObject() {
				return fmt.Errorf("%w: %q is not an object in %q", ErrBadPath, prefix, path)
			}
		}

	case "status":
		if len(segments) != 1 {
			return fmt.Errorf("%w: %q", ErrBadPath, path)
		}

		str, ok := value.(string)
		if !ok || !models.ValidCaseStatus(models.CaseStatus(str)) {
			return fmt.Errorf("%w: %v is not a case status", ErrBadPath, value)
		}

		d.kase.SetStatus(models.CaseStatus(str))

	default:
		return fmt.Errorf("%w: %q is not writable", ErrBadPath, path)
	}

	raw, err := sjson.SetBytes(d.raw, path, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPath, err)
	}

	d.raw = raw
	d.dirty = true

	return nil
}

// Dirty reports whether any write happened since the snapshot.
func (d *Document) Dirty() bool {
	return d.dirty
}

// Apply folds accumulated writes back into the underlying case.
func (d *Document) Apply() error {
	if !d.dirty {
		return nil
	}

	var view struct {
		Data     map[string]any `json:"data"`
		Metadata map[string]any `json:"metadata"`
	}

	if err := json.Unmarshal(d.raw, &view); err != nil {
		return fmt.Errorf("failed to fold document back into case: %w", err)
	}

	d.kase.Data = view.Data
	d.kase.Metadata = view.Metadata

	return nil
}
