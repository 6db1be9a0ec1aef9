package sources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

const waterColorPattern = "*.txt"

// DirWaterColorSource reads the classifier output directory; the most
// recently modified .txt file is the current sample.
type DirWaterColorSource struct {
	dir string
}

func NewDirWaterColorSource(dir string) *DirWaterColorSource {
	return &DirWaterColorSource{dir: dir}
}

func (d *DirWaterColorSource) Latest(_ context.Context) (model.WaterColorSample, bool, error) {
	files, err := listNewestFirst(d.dir, waterColorPattern)
	if err != nil {
		return model.WaterColorSample{}, false, fmt.Errorf("list water color dir %s: %w", d.dir, err)
	}
	if len(files) == 0 {
		return model.WaterColorSample{}, false, nil
	}
	newest := files[0]
	b, err := os.ReadFile(newest.path)
	if err != nil {
		return model.WaterColorSample{}, false, fmt.Errorf("read %s: %w", newest.name, err)
	}
	return model.WaterColorSample{
		Label:      strings.TrimSpace(string(b)),
		ObservedAt: newest.modTime,
		SourcePath: newest.path,
	}, true, nil
}
