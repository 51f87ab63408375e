package emulator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openretro/retroshell/pkg/logger"
)

// CoreFactory builds a fresh core instance.
type CoreFactory func(log *logger.Logger) (Core, error)

var (
	mu    sync.Mutex
	cores = map[string]CoreFactory{}
)

// Register makes a core constructor available by name.
// The embedder supplies its cores here, typically from an init function.
func Register(name string, f CoreFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := cores[name]; ok {
		panic(fmt.Sprintf("emulator: duplicate core registration %q", name))
	}
	cores[name] = f
}

// Make instantiates a registered core.
func Make(name string, log *logger.Logger) (Core, error) {
	mu.Lock()
	f, ok := cores[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("emulator: unknown core %q (registered: %v)", name, Registered())
	}
	return f(log)
}

// Registered lists the registered core names.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(cores))
	for n := range cores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
