package channel

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dispatchlab/simterm/internal/variable"
)

// Tree is the minimal configuration-tree surface ChannelMap needs. The
// concrete implementation (internal/config, backed by viper) supplies
// this; the config *engine* is out of scope for the CORE per spec.md §1,
// but the CORE still consumes the surface described in spec.md §6.
type Tree interface {
	// Sub returns the subtree rooted at key, or nil if it does not exist.
	Sub(key string) Tree
	// GetString returns the string value at key, or "" if absent.
	GetString(key string) string
	// IsSet reports whether key has any value set under it.
	IsSet(key string) bool
}

// ChannelMap is the static, process-lifetime mapping built once from
// configuration: per type-tag the unique (names, ids) vectors, plus the
// ordered list of channels (spec.md §3).
type ChannelMap struct {
	names map[variable.TypeTag][]string
	ids   map[variable.TypeTag][]variable.PortID
	index map[portKey]variable.PortID // (type,name) -> PortID, for dedup
	Channels []*Channel
}

type portKey struct {
	t    variable.TypeTag
	name string
}

func newChannelMap() *ChannelMap {
	return &ChannelMap{
		names: make(map[variable.TypeTag][]string),
		ids:   make(map[variable.TypeTag][]variable.PortID),
		index: make(map[portKey]variable.PortID),
	}
}

// Names returns the names of all ports of the given type, in
// registration order.
func (m *ChannelMap) Names(t variable.TypeTag) []string { return m.names[t] }

// IDs returns the PortIDs of all ports of the given type, parallel to Names.
func (m *ChannelMap) IDs(t variable.TypeTag) []variable.PortID { return m.ids[t] }

// lookupOrDraw returns the existing PortID for (t,name), drawing a fresh
// one and recording it if this is the first time (t,name) is seen.
func (m *ChannelMap) lookupOrDraw(drawer *variable.Drawer, t variable.TypeTag, name string) variable.PortID {
	key := portKey{t: t, name: name}
	if id, ok := m.index[key]; ok {
		return id
	}
	id := drawer.Next(t)
	m.index[key] = id
	m.names[t] = append(m.names[t], name)
	m.ids[t] = append(m.ids[t], id)
	return id
}

func typeFromCode(code string) (variable.TypeTag, error) {
	if code == "" {
		return variable.Unknown, nil
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, ErrBadTypeCode
	}
	switch n {
	case 0:
		return variable.Real, nil
	case 1:
		return variable.Integer, nil
	case 2:
		return variable.Boolean, nil
	case 3:
		return variable.String, nil
	case 4:
		return variable.Unknown, nil
	default:
		return 0, ErrBadTypeCode
	}
}

// subtreeIndices walks tree for the first consecutive run of integer
// keys "0","1","2",... (spec.md §4.2: "until the first gap").
func subtreeIndices(tree Tree) []int {
	var out []int
	for i := 0; ; i++ {
		key := strconv.Itoa(i)
		if !tree.IsSet(key) && tree.Sub(key) == nil {
			break
		}
		out = append(out, i)
	}
	return out
}

// FromConfig walks a configuration subtree shaped "N.*" for consecutive
// channels N=0,1,2,... until the first gap; within each channel, variable
// entries "M.*" are parsed likewise (spec.md §4.2).
func FromConfig(drawer *variable.Drawer, tree Tree) (*ChannelMap, error) {
	m := newChannelMap()
	for _, n := range subtreeIndices(tree) {
		chSub := tree.Sub(strconv.Itoa(n))
		if chSub == nil {
			continue
		}
		ch, err := parseChannel(m, drawer, strconv.Itoa(n), chSub)
		if err != nil {
			return nil, err
		}
		m.Channels = append(m.Channels, ch)
	}
	return m, nil
}

func parseChannel(m *ChannelMap, drawer *variable.Drawer, id string, chSub Tree) (*Channel, error) {
	var ports []variable.PortID
	var perPort []PortConfig

	for _, vn := range subtreeIndices(chSub) {
		varSub := chSub.Sub(strconv.Itoa(vn))
		if varSub == nil {
			continue
		}
		name := varSub.GetString("data")
		if name == "" {
			return nil, ErrEmptyName
		}
		t, err := typeFromCode(varSub.GetString("type"))
		if err != nil {
			return nil, err
		}
		port := m.lookupOrDraw(drawer, t, name)
		ports = append(ports, port)
		perPort = append(perPort, PortConfig{WireTypeOverride: varSub.GetString("encoding")})
	}

	channelCfg := map[string]string{
		"addr":                     chSub.GetString("addr"),
		"protocol":                 chSub.GetString("protocol"),
		"packetTimeout":            chSub.GetString("packetTimeout"),
		"reconnectionInterval":     chSub.GetString("reconnectionInterval"),
		"reconnectionRetryCount":   chSub.GetString("reconnectionRetryCount"),
	}
	connRef := chSub.GetString("connection")

	return NewChannel(id, ports, perPort, channelCfg, connRef)
}

// Describe returns a stable, human-readable summary of the map, used by
// internal/debugsrv's introspection endpoint.
func (m *ChannelMap) Describe() string {
	types := make([]variable.TypeTag, 0, len(m.names))
	for t := range m.names {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	out := ""
	for _, t := range types {
		out += fmt.Sprintf("%s: %v\n", t, m.names[t])
	}
	return out
}
