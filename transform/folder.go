package transform

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	tik "github.com/tabular-tools/tik"
)

// FolderMain transforms every tabular file in a folder into one combined
// comprehension, deriving each file's entity name from its filename.
type FolderMain struct {
	Path     string `help:"Folder of input files (.csv, .tsv, .json)."`
	Output   string `help:"Combined comprehension output file."`
	Incoming string `help:"Prior comprehension file to merge new records into."`
}

// NewFolderMain gets a FolderMain with defaults.
func NewFolderMain() *FolderMain {
	return &FolderMain{Output: "Folder-Comprehension.json"}
}

// Run transforms every supported file in the folder, in name order, merging
// each file's entity table into one comprehension.
func (m *FolderMain) Run() error {
	entries, err := os.ReadDir(m.Path)
	if err != nil {
		return errors.Wrapf(err, "reading folder %s", m.Path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	combined := tik.Comprehension{}
	for _, name := range names {
		path := filepath.Join(m.Path, name)
		var fm *Main
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv":
			fm = NewCSVMain()
		case ".tsv":
			fm = NewTSVMain()
		case ".json":
			fm = NewJSONArrayMain()
		default:
			continue
		}
		fm.Path = path
		fm.Incoming = m.Incoming
		fm.Entity = tik.EntityNameFromLabel(DatasetLabel(name))
		outcome, err := fm.Transform()
		if err != nil {
			return errors.Wrapf(err, "transforming %s", name)
		}
		if outcome.Configuration == nil {
			log.Printf("no records in %s, skipping", name)
			continue
		}
		log.Printf("transformed %s into entity %s (%d rows, %d bad)",
			name, outcome.Configuration.Entity, outcome.ParsedRowCount, len(outcome.BadRecords))
		for entity, table := range outcome.Comprehension {
			target := combined.Entity(entity)
			for guid, rec := range table {
				if existing, ok := target[guid]; ok {
					for k, v := range rec {
						existing[k] = v
					}
				} else {
					target[guid] = rec
				}
			}
		}
	}
	return errors.Wrap(combined.WriteFile(m.Output), "writing combined comprehension")
}
