package core

import (
	"fmt"

	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/odt"
)

// MaxCores bounds how many DSP cores one System may drive.
const MaxCores = 3

// CoreSpec describes one core for AddModules: its null-terminated module
// list plus the FIFO wiring its bit-rippers are born with.
type CoreSpec struct {
	Modules   []odt.Entry
	FIFOWords int
	Refillers [bitRippersPerCore]bitripper.Refiller
}

// AddModules is the boot step that turns per-core module lists into a
// running System: specs are consumed in order until the first nil entry,
// each non-nil spec becoming one core with its ODT parsed from the
// null-terminated module list.
func AddModules(specs []*CoreSpec, fg2bgRatio int) (*System, error) {
	var cores []*Core
	for _, sp := range specs {
		if sp == nil {
			break
		}
		if len(cores) == MaxCores {
			return nil, fmt.Errorf("core: too many cores (max %d)", MaxCores)
		}
		table, err := odt.FromList(sp.Modules)
		if err != nil {
			return nil, fmt.Errorf("core: core %d module list: %w", len(cores), err)
		}
		fifoWords := sp.FIFOWords
		if fifoWords <= 0 {
			fifoWords = DefaultFIFOWords
		}
		cores = append(cores, NewCore(table, fifoWords, sp.Refillers))
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("core: no module lists supplied")
	}
	return New(cores, fg2bgRatio), nil
}

// DefaultFIFOWords sizes a core's input FIFO when the caller doesn't.
const DefaultFIFOWords = 4096
