package engine

import (
	"context"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Host module names.
const (
	ModuleHost       = "modhost"
	ModuleEvents     = "modhost:events"
	ModulePatch      = "modhost:patch"
	ModuleSerializer = "modhost:serializer"
	ModuleConsole    = "modhost:console"
	ModuleProcess    = "modhost:process"
)

// APIVersion is returned by modhost.api_version. Binaries built against
// version 1 use the legacy log functions.
const APIVersion = 2

// Log levels accepted by modhost.log.
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Event names mods can subscribe to.
const (
	EventUpdateTick              = "update_tick"
	EventUpdateTicked            = "update_ticked"
	EventUnvalidatedUpdateTick   = "unvalidated_update_tick"
	EventUnvalidatedUpdateTicked = "unvalidated_update_ticked"
)

// Subscription is a mod's handler for an event, as a function table index.
type Subscription struct {
	Module  string
	Handler uint32
}

// Patch is a request to replace a host function.
type Patch struct {
	Module  string
	Target  string
	Handler uint32
}

// Registry records what mods registered through the host API during
// instantiation. Dispatching is left to the caller.
type Registry struct {
	subs    map[string][]Subscription
	patches []Patch
	types   []string
	mu      sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string][]Subscription)}
}

// Subscriptions returns the handlers registered for event.
func (r *Registry) Subscriptions(event string) []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Subscription(nil), r.subs[event]...)
}

// Patches returns every patch request.
func (r *Registry) Patches() []Patch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Patch(nil), r.patches...)
}

// SerializerTypes returns the registered serializer type names.
func (r *Registry) SerializerTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func (r *Registry) subscribe(event string, s Subscription) {
	r.mu.Lock()
	r.subs[event] = append(r.subs[event], s)
	r.mu.Unlock()
}

func (r *Registry) addPatch(p Patch) {
	r.mu.Lock()
	r.patches = append(r.patches, p)
	r.mu.Unlock()
}

func (r *Registry) addType(name string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, name)
	return uint32(len(r.types))
}

// guestMemory returns nil for guests without a memory. wazero hands those back
// as a typed nil inside the api.Memory interface.
func guestMemory(m api.Module) api.Memory {
	mem := m.Memory()
	if mem == nil {
		return nil
	}
	if v := reflect.ValueOf(mem); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return mem
}

func readString(m api.Module, ptr, size uint64) (string, bool) {
	mem := guestMemory(m)
	if mem == nil {
		return "", false
	}
	b, ok := mem.Read(api.DecodeU32(ptr), api.DecodeU32(size))
	if !ok {
		return "", false
	}
	return string(b), true
}

func logLevel(level int32) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// DefaultHostAPI returns the host modules mods link against. Registrations
// are recorded in reg.
func DefaultHostAPI(reg *Registry) *HostAPI {
	u32 := wit.U32{}
	str := wit.String{}

	host := HostModule{Name: ModuleHost, Funcs: []HostFunc{
		NewFunc("log", []wit.Type{str, wit.S32{}}, nil, api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
			msg, ok := readString(m, stack[0], stack[1])
			if !ok {
				Logger().Warn("guest log message out of bounds", zap.String("mod", m.Name()))
				return
			}
			if ce := Logger().Check(logLevel(api.DecodeI32(stack[2])), msg); ce != nil {
				ce.Write(zap.String("mod", m.Name()))
			}
		})),
		NewFunc("api_version", nil, []wit.Type{u32}, api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeU32(APIVersion)
		})),
		NewFunc("now_ms", nil, []wit.Type{wit.U64{}}, api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(time.Now().UnixMilli())
		})),
	}}

	subscribe := func(event string) HostFunc {
		return NewFunc("on_"+event, []wit.Type{u32}, nil, api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
			reg.subscribe(event, Subscription{Module: m.Name(), Handler: api.DecodeU32(stack[0])})
		}))
	}
	events := HostModule{Name: ModuleEvents, Funcs: []HostFunc{
		subscribe(EventUpdateTick),
		subscribe(EventUpdateTicked),
		subscribe(EventUnvalidatedUpdateTick),
		subscribe(EventUnvalidatedUpdateTicked),
	}}

	patch := HostModule{Name: ModulePatch, Funcs: []HostFunc{
		NewFunc("replace", []wit.Type{str, u32}, []wit.Type{wit.Bool{}}, api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
			target, ok := readString(m, stack[0], stack[1])
			if !ok {
				stack[0] = 0
				return
			}
			reg.addPatch(Patch{Module: m.Name(), Target: target, Handler: api.DecodeU32(stack[2])})
			Logger().Debug("host patch registered", zap.String("mod", m.Name()), zap.String("target", target))
			stack[0] = 1
		})),
	}}

	registerType := func(name string) api.GoModuleFunc {
		return func(_ context.Context, m api.Module, stack []uint64) {
			typ, ok := readString(m, stack[0], stack[1])
			if !ok {
				stack[0] = 0
				return
			}
			stack[0] = api.EncodeU32(reg.addType(typ))
			Logger().Debug("serializer type registered", zap.String("mod", m.Name()), zap.String("kind", name), zap.String("type", typ))
		}
	}
	serializer := HostModule{Name: ModuleSerializer, Funcs: []HostFunc{
		NewFunc("register_type", []wit.Type{str}, []wit.Type{u32}, registerType("type")).
			WithSignature("Serializer<T>", "T"),
		NewFunc("register_dictionary", []wit.Type{str}, []wit.Type{u32}, registerType("dictionary")).
			WithSignature("Dictionary<TKey,Holder<TValue>>", "TKey", "TValue"),
	}}

	console := HostModule{Name: ModuleConsole, Funcs: []HostFunc{
		NewFunc("write", []wit.Type{str}, nil, api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
			if text, ok := readString(m, stack[0], stack[1]); ok {
				Logger().Info(text, zap.String("mod", m.Name()), zap.String("source", "console"))
			}
		})),
	}}

	process := HostModule{Name: ModuleProcess, Funcs: []HostFunc{
		NewFunc("pid", nil, []wit.Type{u32}, api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeU32(uint32(os.Getpid()))
		})),
	}}

	return NewHostAPI(host, events, patch, serializer, console, process)
}
