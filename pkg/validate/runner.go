package validate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/alitto/pond"
	"go.uber.org/zap"

	"github.com/tapstack/tapstack/pkg/template"
)

type (
	// Violation is one failed rule (or unreadable file) in the report.
	Violation struct {
		File string `json:"file"`
		Rule string `json:"rule"`
		Err  string `json:"error"`
	}

	Report struct {
		FilesChecked int         `json:"files_checked"`
		Violations   []Violation `json:"violations"`
	}

	// Runner validates template files concurrently against a rule set.
	Runner struct {
		Rules   []Rule
		Workers int
	}
)

func (r Report) Ok() bool {
	return len(r.Violations) == 0
}

// Run validates all the given files. Violations are collected, not returned
// as errors; the error return is reserved for an empty input set.
func (r *Runner) Run(paths []string) (Report, error) {
	if len(paths) == 0 {
		return Report{}, fmt.Errorf("no template files to validate")
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 5
	}

	var (
		mu         sync.Mutex
		violations []Violation
	)
	record := func(file, rule string, err error) {
		mu.Lock()
		defer mu.Unlock()
		violations = append(violations, Violation{File: file, Rule: rule, Err: err.Error()})
	}

	pool := pond.New(workers, len(paths), pond.Strategy(pond.Lazy()))
	defer pool.StopAndWait()

	group := pool.Group()
	for _, path := range paths {
		path := path
		group.Submit(func() {
			log := zap.L().With(zap.String("template", path)).Sugar()

			doc, err := template.Read(path)
			if err != nil {
				log.Debugw("unreadable template", "error", err)
				record(path, "read", err)
				return
			}
			for _, rule := range r.Rules {
				if err := rule.Check(doc); err != nil {
					log.Debugw("rule failed", "rule", rule.Name(), "error", err)
					record(path, rule.Name(), err)
				}
			}
		})
	}
	group.Wait()

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		return violations[i].Rule < violations[j].Rule
	})
	return Report{FilesChecked: len(paths), Violations: violations}, nil
}

// CollectTemplates expands the given paths: directories are walked for
// template files, plain files are taken as-is.
func CollectTemplates(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch filepath.Ext(p) {
			case ".json", ".yaml", ".yml", ".template":
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
