// Package hostcomm implements the host-communication replay mechanism: a
// recorded sequence of opcode/offset/value operations applied to module
// parameter blocks before kickoff, optionally loaded from a textual
// configuration file.
package hostcomm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/haos-sim/haos/internal/odt"
)

// OpCode is the two-bit operation selector in a command word.
type OpCode uint8

const (
	OpSet OpCode = iota
	OpOr
	OpAnd
	OpRead // accepted for wire compatibility, always ignored
)

// Command is one decoded command word: write numWords payload values into
// moduleID's MCV starting at offset, applying opcode to each.
type Command struct {
	ModuleID uint8
	Op       OpCode
	Offset   uint16
	Payload  []int32
}

// decodeWord splits a raw 32-bit command word into its fields, MSB to
// LSB: moduleID[7] | opCode[2] | numWords-1[5] | reserved | offset[16].
func decodeWord(word uint32) (moduleID uint8, op OpCode, numWords int, offset uint16) {
	moduleID = uint8((word >> 25) & 0x7F)
	op = OpCode((word >> 23) & 0x3)
	numWords = int((word>>18)&0x1F) + 1
	offset = uint16(word & 0xFFFF)
	return
}

// Replay holds a decoded list of commands, each paired with their payload
// words, ready to apply to a set of module tables.
type Replay struct {
	Commands []Command
}

// Apply runs every command against table, silently dropping commands
// whose moduleID doesn't match any entry.
func (r *Replay) Apply(table *odt.Table) {
	for _, cmd := range r.Commands {
		mif, ok := table.ByModuleID(cmd.ModuleID)
		if !ok {
			continue
		}
		applyCommand(mif.MCV, cmd)
	}
}

func applyCommand(mcv odt.MCV, cmd Command) {
	offset := int(cmd.Offset)
	for i, v := range cmd.Payload {
		idx := offset + i
		if idx < 0 || idx >= len(mcv) {
			continue
		}
		switch cmd.Op {
		case OpSet:
			mcv[idx] = v
		case OpOr:
			mcv[idx] |= v
		case OpAnd:
			mcv[idx] &= v
		case OpRead:
			// read is accepted for wire compatibility, never acted on.
		}
	}
}

// DecodeWords builds a Replay from raw command words, each immediately
// followed in the slice by its numWords payload words.
func DecodeWords(words []uint32) *Replay {
	r := &Replay{}
	for i := 0; i < len(words); {
		moduleID, op, numWords, offset := decodeWord(words[i])
		i++
		payload := make([]int32, 0, numWords)
		for j := 0; j < numWords && i < len(words); j++ {
			payload = append(payload, int32(words[i]))
			i++
		}
		r.Commands = append(r.Commands, Command{
			ModuleID: moduleID,
			Op:       op,
			Offset:   offset,
			Payload:  payload,
		})
	}
	return r
}

// LoadConfigFile parses a textual host-comm replay file: hex command and
// payload tokens, '#'-prefixed comments, and '#include <path>' directives
// resolved relative to the including file's directory.
func LoadConfigFile(path string) (*Replay, error) {
	words, err := tokenizeFile(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return DecodeWords(words), nil
}

func tokenizeFile(path string, visited map[string]bool) ([]uint32, error) {
	if visited[path] {
		return nil, fmt.Errorf("hostcomm: circular #include of %q", path)
	}
	visited[path] = true

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hostcomm: open %q: %w", path, err)
	}
	defer f.Close()

	var words []uint32
	dir := path[:strings.LastIndex(path, "/")+1]
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#include") {
				fields := strings.Fields(line)
				if len(fields) != 2 {
					return nil, fmt.Errorf("hostcomm: malformed #include directive: %q", line)
				}
				incPath := fields[1]
				if !strings.HasPrefix(incPath, "/") {
					incPath = dir + incPath
				}
				nested, err := tokenizeFile(incPath, visited)
				if err != nil {
					return nil, err
				}
				words = append(words, nested...)
			}
			continue
		}
		for _, tok := range strings.Fields(line) {
			tok = strings.TrimPrefix(strings.ToLower(tok), "0x")
			v, err := strconv.ParseUint(tok, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("hostcomm: bad hex token %q in %s: %w", tok, path, err)
			}
			words = append(words, uint32(v))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
