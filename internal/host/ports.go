package host

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// LedgerPorts records opened ports in the state store and, when a command
// runner is configured, mirrors them into ufw.
type LedgerPorts struct {
	store  state.Store
	lock   *sync.Mutex
	run    CommandRunner
	logger zerolog.Logger
}

// NewLedgerPorts builds a port ledger. A nil run disables firewall calls.
func NewLedgerPorts(store state.Store, lock *sync.Mutex, run CommandRunner, logger zerolog.Logger) *LedgerPorts {
	return &LedgerPorts{store: store, lock: lock, run: run, logger: logger}
}

// PortEntry formats a TCP port the way the ledger stores it.
func PortEntry(port int) string {
	return strconv.Itoa(port) + "/tcp"
}

// ParsePortEntry extracts the port number from a "port/proto" entry.
func ParsePortEntry(entry string) (int, error) {
	number, _, _ := strings.Cut(entry, "/")
	port, err := strconv.Atoi(number)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port entry %q", entry)
	}
	return port, nil
}

// Open opens port for TCP.
func (p *LedgerPorts) Open(ctx context.Context, port int) error {
	entry := PortEntry(port)
	if p.run != nil {
		if err := p.run(ctx, "ufw", "allow", entry); err != nil {
			return err
		}
	}
	_, err := state.Update(ctx, p.store, p.lock, func(s *state.State) error {
		for _, existing := range s.Ports {
			if existing == entry {
				return nil
			}
		}
		s.Ports = append(s.Ports, entry)
		sort.Strings(s.Ports)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record open port %s: %w", entry, err)
	}
	p.logger.Info().Str("port", entry).Msg("opened port")
	return nil
}

// Close closes port. Closing a port that is not open succeeds.
func (p *LedgerPorts) Close(ctx context.Context, port int) error {
	entry := PortEntry(port)
	if p.run != nil {
		if err := p.run(ctx, "ufw", "delete", "allow", entry); err != nil {
			return err
		}
	}
	_, err := state.Update(ctx, p.store, p.lock, func(s *state.State) error {
		kept := s.Ports[:0]
		for _, existing := range s.Ports {
			if existing != entry {
				kept = append(kept, existing)
			}
		}
		s.Ports = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("record closed port %s: %w", entry, err)
	}
	p.logger.Info().Str("port", entry).Msg("closed port")
	return nil
}

// List returns the ports currently recorded as open.
func (p *LedgerPorts) List(ctx context.Context) ([]string, error) {
	if p.lock != nil {
		p.lock.Lock()
		defer p.lock.Unlock()
	}
	current, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(current.Ports))
	copy(out, current.Ports)
	return out, nil
}
