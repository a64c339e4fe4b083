package vm

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// machineState is the JSON-serializable snapshot of the machine's control
// state. The code itself travels separately as an encoded Program.
type machineState struct {
	PC     int             `json:"pc"`
	Halted bool            `json:"halted"`
	Stack  []stateValue    `json:"stack"`
	Vars   []stateVariable `json:"vars"`
}

// stateValue carries reals as text so that infinities and NaN survive JSON.
type stateValue struct {
	Kind string `json:"kind"`
	I    int64  `json:"i,omitempty"`
	F    string `json:"f,omitempty"`
	B    bool   `json:"b,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

type stateVariable struct {
	Name  string      `json:"name"`
	Kind  string      `json:"kind"`
	Set   bool        `json:"set"`
	Value *stateValue `json:"value,omitempty"`
}

var kindsByName = map[string]Kind{
	KindNone.String(): KindNone,
	KindInt.String():  KindInt,
	KindReal.String(): KindReal,
	KindBool.String(): KindBool,
	KindRef.String():  KindRef,
}

func toState(v Value) stateValue {
	s := stateValue{Kind: v.Kind.String(), I: v.I, B: v.B, Ref: v.Ref}
	if v.Kind == KindReal {
		s.F = strconv.FormatFloat(v.F, 'g', -1, 64)
	}
	return s
}

func fromState(s stateValue) (Value, error) {
	k, ok := kindsByName[s.Kind]
	if !ok {
		return Value{}, fmt.Errorf("unknown value kind %q", s.Kind)
	}
	v := Value{Kind: k, I: s.I, B: s.B, Ref: s.Ref}
	if k == KindReal {
		f, err := strconv.ParseFloat(s.F, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid real %q", s.F)
		}
		v.F = f
	}
	return v, nil
}

// HibernateToBytes serialises the machine into an in-memory ZIP archive holding
// machine_state.json and program.cbor. The step counter and any input already
// read are not part of the snapshot.
func (m *Machine) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := machineState{PC: m.PC, Halted: m.Halted}
	for _, v := range m.Stack {
		state.Stack = append(state.Stack, toState(v))
	}
	names := make([]string, 0, len(m.Vars))
	for name := range m.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	prog := &Program{Version: ProgramVersion, Code: m.Code}
	for _, name := range names {
		s := m.Vars[name]
		sv := stateVariable{Name: name, Kind: s.Kind.String(), Set: s.Set}
		if s.Set {
			v := toState(s.Value)
			sv.Value = &v
		}
		state.Vars = append(state.Vars, sv)
		prog.Vars = append(prog.Vars, Var{Name: name, Kind: s.Kind})
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal machine_state: %w", err)
	}
	if err := writeZipEntry(zw, "machine_state.json", jsonData); err != nil {
		return nil, err
	}

	code, err := MarshalProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("marshal program: %w", err)
	}
	if err := writeZipEntry(zw, "program.cbor", code); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes replaces the machine's code and state with a snapshot made
// by HibernateToBytes. Output, Input and MaxSteps are left as they are; the
// step counter restarts at zero.
func (m *Machine) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	code, err := readZipEntry(fileMap, "program.cbor")
	if err != nil {
		return err
	}
	prog, err := UnmarshalProgram(code)
	if err != nil {
		return err
	}

	jsonData, err := readZipEntry(fileMap, "machine_state.json")
	if err != nil {
		return err
	}
	var state machineState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal machine_state: %w", err)
	}
	if state.PC < 0 || state.PC > len(prog.Code) {
		return fmt.Errorf("%w: %d", ErrInvalidJumpDest, state.PC)
	}

	stack := make([]Value, 0, len(state.Stack))
	for _, sv := range state.Stack {
		v, err := fromState(sv)
		if err != nil {
			return err
		}
		stack = append(stack, v)
	}

	vars := make(map[string]*Slot, len(state.Vars))
	for _, sv := range state.Vars {
		k, ok := kindsByName[sv.Kind]
		if !ok {
			return fmt.Errorf("variable %q: unknown kind %q", sv.Name, sv.Kind)
		}
		slot := &Slot{Kind: k, Set: sv.Set}
		if sv.Set && sv.Value != nil {
			if slot.Value, err = fromState(*sv.Value); err != nil {
				return fmt.Errorf("variable %q: %w", sv.Name, err)
			}
		}
		vars[sv.Name] = slot
	}

	m.Code = prog.Code
	m.PC = state.PC
	m.Halted = state.Halted
	m.Stack = stack
	m.Vars = vars
	m.Steps = 0
	log.Debugf("restored machine at pc %d with %d variables", m.PC, len(m.Vars))
	return nil
}

// HibernateToFile writes the hibernation archive to the given file path.
func (m *Machine) HibernateToFile(path string) error {
	data, err := m.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from the given file path and
// restores the machine state.
func (m *Machine) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("missing zip entry %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
