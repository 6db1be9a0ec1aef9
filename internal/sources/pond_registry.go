package sources

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

// DirPondRegistry reads pond_<id>_<stamp>.json records; for each pond the
// most recently modified record wins.
type DirPondRegistry struct {
	dir string
}

func NewDirPondRegistry(dir string) *DirPondRegistry {
	return &DirPondRegistry{dir: dir}
}

func (r *DirPondRegistry) Lookup(_ context.Context, pondID string) (model.PondAttributes, bool, error) {
	pondID = strings.TrimSpace(pondID)
	if pondID == "" || strings.ContainsAny(pondID, `*?[]\/`) {
		return model.PondAttributes{}, false, fmt.Errorf("lookup pond %q: invalid id", pondID)
	}
	files, err := listNewestFirst(r.dir, "pond_"+pondID+"_*.json")
	if err != nil {
		return model.PondAttributes{}, false, fmt.Errorf("list pond registry %s: %w", r.dir, err)
	}
	if len(files) == 0 {
		return model.PondAttributes{}, false, nil
	}
	b, err := os.ReadFile(files[0].path)
	if err != nil {
		return model.PondAttributes{}, false, fmt.Errorf("read %s: %w", files[0].name, err)
	}
	attrs, err := decodePondRecord(pondID, b)
	if err != nil {
		return model.PondAttributes{}, false, fmt.Errorf("decode %s: %w", files[0].name, err)
	}
	return attrs, true, nil
}

// decodePondRecord falls back to the default size when pond_size_rai is
// missing or not positive.
func decodePondRecord(pondID string, b []byte) (model.PondAttributes, error) {
	if !gjson.ValidBytes(b) {
		return model.PondAttributes{}, fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(b)
	attrs := model.DefaultPond(pondID)
	if v := doc.Get("pond_size_rai"); v.Exists() {
		if size := v.Float(); size > 0 {
			attrs.SizeRai = size
		}
	}
	attrs.InitialStock = int(doc.Get("initial_stock").Int())
	if d := doc.Get("date"); d.Exists() {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, d.String()); err == nil {
				attrs.RegisteredAt = t
				break
			}
		}
	}
	return attrs, nil
}
