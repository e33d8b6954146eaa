package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// requiredTables are the container files every level directory carries
// alongside its sector data.
var requiredTables = []string{
	"entitylibrary",
	"managers",
	"mapsdata",
	"omnis",
	"sectorsdep",
}

// LevelPaths locates the files of a level on disk.
type LevelPaths struct {
	// Container is the directory holding the table files.
	Container string

	// Tables are the required table files, in canonical order.
	Tables []string

	// Sectors is the directory holding the sector data files, or empty if
	// none was found under Container. Sector data can live elsewhere; pass
	// its directory to LoadLevel directly in that case.
	Sectors string

	// Data are the sector data files under Sectors, sorted.
	Data []string
}

// FindLevel checks that containerDir holds the table files of a level and
// locates its sector data directory. File name matching is
// case-insensitive; shipped levels mix cases freely.
func FindLevel(containerDir string) (LevelPaths, error) {
	lp := LevelPaths{Container: containerDir}
	ents, err := os.ReadDir(containerDir)
	if err != nil {
		return lp, err
	}

	found := make(map[string]string, len(requiredTables))
	var subdirs []string
	for _, ent := range ents {
		name := ent.Name()
		if ent.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		low := strings.ToLower(name)
		for _, table := range requiredTables {
			if low == table+".fcb" {
				found[table] = filepath.Join(containerDir, name)
			}
		}
	}

	var missing []string
	for _, table := range requiredTables {
		if path, ok := found[table]; ok {
			lp.Tables = append(lp.Tables, path)
		} else {
			missing = append(missing, table+".fcb")
		}
	}
	if len(missing) > 0 {
		return lp, fmt.Errorf("not a level directory: missing %s", strings.Join(missing, ", "))
	}

	// Prefer a subdirectory named worldsectors, else the first one that
	// holds sector data.
	sort.Strings(subdirs)
	for _, sub := range subdirs {
		dir := filepath.Join(containerDir, sub)
		data := sectorData(dir)
		if len(data) == 0 {
			continue
		}
		if strings.EqualFold(sub, "worldsectors") {
			lp.Sectors, lp.Data = dir, data
			break
		}
		if lp.Sectors == "" {
			lp.Sectors, lp.Data = dir, data
		}
	}
	return lp, nil
}

// sectorData lists the sector data files in dir, sorted.
func sectorData(dir string) []string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(ent.Name()), ".data.fcb") {
			paths = append(paths, filepath.Join(dir, ent.Name()))
		}
	}
	sort.Strings(paths)
	return paths
}

// levelFiles gathers every container path LoadLevel should read: all
// container files directly in containerDir plus the sector data files in
// sectorsDir. The list is sorted so loads assemble deterministically.
func levelFiles(containerDir, sectorsDir string) ([]string, error) {
	ents, err := os.ReadDir(containerDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(ent.Name()), ".fcb") {
			paths = append(paths, filepath.Join(containerDir, ent.Name()))
		}
	}
	if sectorsDir != "" && sectorsDir != containerDir {
		paths = append(paths, sectorData(sectorsDir)...)
	}
	sort.Strings(paths)
	return paths, nil
}
