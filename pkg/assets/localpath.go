package assets

import (
	"os"
	"path/filepath"
)

// conventionalOutputRoots are probed when no explicit output root is
// configured, matching where render servers commonly write artifacts.
func conventionalOutputRoots() []string {
	home, err := os.UserHomeDir()
	roots := []string{}
	if err == nil {
		roots = append(roots, filepath.Join(home, "ComfyUI", "output"))
	}
	return append(roots, "/opt/ComfyUI/output", `C:\ComfyUI\output`)
}

// LocalPath resolves a record to a file on this machine, when the
// server's output directory is locally visible. root may be empty, in
// which case conventional locations are probed. Returns "" when the
// file cannot be found; fetching over HTTP is the fallback.
func (r *Record) LocalPath(root string) string {
	var bases []string
	if root != "" {
		bases = []string{root}
	} else {
		for _, candidate := range conventionalOutputRoots() {
			if st, err := os.Stat(candidate); err == nil && st.IsDir() {
				bases = append(bases, candidate)
			}
		}
	}

	for _, base := range bases {
		if r.Subfolder != "" {
			p := filepath.Join(base, r.Subfolder, r.Filename)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		p := filepath.Join(base, r.Filename)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
