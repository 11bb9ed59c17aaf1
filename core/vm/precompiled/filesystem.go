package precompiled

import (
	"encoding/json"
	"strings"

	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// SysFileSystemTable is SYS_FS(path -> type, parent), the BFS directory
// layout spec.md §4.5/§6 describes for WASM-mode deployments.
const SysFileSystemTable = "SYS_FS"

const (
	fsTypeDirectory = "directory"
	fsTypeContract  = "contract"
)

const fsMaxDepth = 32

var (
	fsListSelector  = abi.Selector("list(string)")
	fsMkdirSelector = abi.Selector("mkdir(string)")
)

// FileSystem implements the BFS precompile used in WASM mode: a directory
// tree of contract deployments rooted at "/".
type FileSystem struct{}

var _ vm.Precompiled = (*FileSystem)(nil)

func (p *FileSystem) Name() string { return "FileSystem" }

func (p *FileSystem) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case fsListSelector:
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		listing := listDirectory(layer, gas, path)
		var enc abi.Encoder
		enc.AddDynamic(abi.EncodeString(listing))
		return gas.total, enc.Bytes(), nil

	case fsMkdirSelector:
		path, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := mkdirAll(layer, gas, path)
		return gas.total, encodeInt256(code), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

// splitPath validates and breaks an absolute path ("/a/b/c") into its
// non-empty segments, rejecting any segment that starts with '_' or is
// not alphanumeric/underscore, and bounding recursion depth.
func splitPath(path string) ([]string, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	raw := strings.Split(strings.Trim(path, "/"), "/")
	if len(raw) == 1 && raw[0] == "" {
		return nil, true
	}
	if len(raw) > fsMaxDepth {
		return nil, false
	}
	for _, seg := range raw {
		if seg == "" || seg[0] == '_' {
			return nil, false
		}
		for _, r := range seg {
			alnum := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
			if !alnum {
				return nil, false
			}
		}
	}
	return raw, true
}

func joinPath(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

func ensureFSTable(layer *state.StorageLayer) (*state.Table, error) {
	return openOrCreate(layer, SysFileSystemTable, "path", []string{"type", "parent"})
}

// mkdirAll recursively creates directory rows for every ancestor of path
// that doesn't exist yet, per spec.md §4.5's mkdir description.
func mkdirAll(layer *state.StorageLayer, gas *pricer, path string) int64 {
	segs, ok := splitPath(path)
	if !ok {
		return CodePathInvalid
	}
	tbl, err := ensureFSTable(layer)
	if err != nil {
		return CodePathInvalid
	}
	gas.openTable()

	current := ""
	parent := "/"
	for _, seg := range segs {
		current += "/" + seg
		existing, exists, _ := tbl.GetRow(current)
		if exists {
			if t, _ := existing.Get("type"); t != fsTypeDirectory {
				return CodePathExists
			}
			parent = current
			continue
		}
		entry := types.NewEntry()
		entry.Set("type", fsTypeDirectory)
		entry.Set("parent", parent)
		if err := tbl.SetRow(current, entry); err != nil {
			return CodePathInvalid
		}
		gas.insert()
		parent = current
	}
	return CodeSuccess
}

// insertContractRecord writes a leaf file-system row of type "contract" at
// path, used by DeployWasm once the underlying CREATE succeeds.
func insertContractRecord(layer *state.StorageLayer, gas *pricer, path string) int64 {
	segs, ok := splitPath(path)
	if !ok || len(segs) == 0 {
		return CodePathInvalid
	}
	tbl, err := ensureFSTable(layer)
	if err != nil {
		return CodePathInvalid
	}
	gas.openTable()

	if _, exists, _ := tbl.GetRow(path); exists {
		return CodePathExists
	}
	parentSegs := segs[:len(segs)-1]
	if code := mkdirAll(layer, gas, joinPath(parentSegs)); code != CodeSuccess && len(parentSegs) > 0 {
		return code
	}
	entry := types.NewEntry()
	entry.Set("type", fsTypeContract)
	entry.Set("parent", joinPath(parentSegs))
	if err := tbl.SetRow(path, entry); err != nil {
		return CodePathInvalid
	}
	gas.insert()
	return CodeSuccess
}

type fsListingEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func listDirectory(layer *state.StorageLayer, gas *pricer, path string) string {
	segs, ok := splitPath(path)
	if !ok {
		return "[]"
	}
	tbl, ok := layer.OpenTable(SysFileSystemTable)
	if !ok {
		return "[]"
	}
	gas.openTable()

	parentPath := joinPath(segs)
	keys, err := tbl.GetPrimaryKeys(func(e *types.Entry) bool {
		parent, _ := e.Get("parent")
		return parent == parentPath
	})
	if err != nil {
		return "[]"
	}

	out := make([]fsListingEntry, 0, len(keys))
	for _, k := range keys {
		entry, exists, err := tbl.GetRow(k)
		if err != nil || !exists {
			continue
		}
		t, _ := entry.Get("type")
		name := k[strings.LastIndex(k, "/")+1:]
		out = append(out, fsListingEntry{Name: name, Type: t})
		gas.selectOp(1)
	}
	buf, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(buf)
}
