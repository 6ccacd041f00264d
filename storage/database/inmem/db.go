package inmemdb

import (
	"sync"

	"github.com/trezcool/escola/core/grade"
)

type (
	// DB is a process-local store, used in DEV and in tests that do not need SQL.
	DB struct {
		grade    *gradeTable
		settings *settingsTable
	}

	gradeTable struct {
		table map[string]*grade.Record // {id: record}
		mutex sync.RWMutex
	}

	settingsTable struct {
		table map[string]grade.Config // {school_id: config}
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		grade:    &gradeTable{table: make(map[string]*grade.Record)},
		settings: &settingsTable{table: make(map[string]grade.Config)},
	}
}
