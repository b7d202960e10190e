package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"fastvlmd/internal/common/fsutil"
	"fastvlmd/pkg/types"
)

// ErrNoModel is returned when a checkpoint directory holds no language model GGUF.
var ErrNoModel = errors.New("no model gguf in checkpoint")

var quantRe = regexp.MustCompile(`(?i)(?:^|[-_.])((?:i?q\d(?:_[a-z0-9]+)*)|bf16|f16|f32)(?:[-_.]|$)`)

// ScanCheckpoint inspects a checkpoint directory and picks the language model and
// vision projector GGUF files. Files whose name starts with "mmproj" are projectors;
// when several model files exist the lexically first one wins.
func ScanCheckpoint(dir string) (types.Checkpoint, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return types.Checkpoint{}, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("abs path: %w", err)
	}
	if !fsutil.IsDir(abs) {
		return types.Checkpoint{}, fmt.Errorf("checkpoint is not a directory: %s", abs)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("read dir: %w", err)
	}
	var models, projectors []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".gguf") {
			continue
		}
		if strings.HasPrefix(lower, "mmproj") {
			projectors = append(projectors, name)
		} else {
			models = append(models, name)
		}
	}
	if len(models) == 0 {
		return types.Checkpoint{}, fmt.Errorf("%s: %w", abs, ErrNoModel)
	}
	sort.Strings(models)
	sort.Strings(projectors)
	cp := types.Checkpoint{
		Name:      filepath.Base(abs),
		Dir:       abs,
		ModelFile: filepath.Join(abs, models[0]),
		Quant:     QuantFromName(models[0]),
	}
	if len(projectors) > 0 {
		cp.ProjectorFile = filepath.Join(abs, projectors[0])
	}
	return cp, nil
}

// QuantFromName extracts a quantization tag such as Q4_K_M or F16 from a file name.
func QuantFromName(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	m := quantRe.FindAllStringSubmatch(stem, -1)
	if len(m) == 0 {
		return ""
	}
	return strings.ToUpper(m[len(m)-1][1])
}
